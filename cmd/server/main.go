package main

import "letterdesk/internal/app/server"

func main() {
	server.Run()
}
