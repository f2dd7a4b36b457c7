package esign

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

const embeddedClientUserID = "1000"

type Document struct {
	DocumentBase64 string `json:"documentBase64"`
	Name           string `json:"name"`
	FileExtension  string `json:"fileExtension"`
	DocumentID     string `json:"documentId"`
}

type SignHereTab struct {
	AnchorString  string `json:"anchorString"`
	AnchorUnits   string `json:"anchorUnits"`
	AnchorXOffset string `json:"anchorXOffset"`
	AnchorYOffset string `json:"anchorYOffset"`
}

type Tabs struct {
	SignHereTabs []SignHereTab `json:"signHereTabs"`
}

type Signer struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	RecipientID  string `json:"recipientId"`
	ClientUserID string `json:"clientUserId,omitempty"`
	Tabs         *Tabs  `json:"tabs,omitempty"`
}

type Recipients struct {
	Signers []Signer `json:"signers"`
}

type EnvelopeDefinition struct {
	EmailSubject string     `json:"emailSubject"`
	Documents    []Document `json:"documents"`
	Recipients   Recipients `json:"recipients"`
	Status       string     `json:"status"`
}

type EnvelopeInput struct {
	Document     []byte
	DocumentName string
	SignerName   string
	SignerEmail  string
	Subject      string
}

// NewEnvelopeDefinition builds the provider payload for a single embedded
// signer with an anchor-placed signature tab.
func NewEnvelopeDefinition(input EnvelopeInput) EnvelopeDefinition {
	ext := strings.TrimPrefix(filepath.Ext(input.DocumentName), ".")
	if ext == "" {
		ext = "pdf"
	}
	subject := input.Subject
	if subject == "" {
		subject = "Please sign: " + input.DocumentName
	}

	return EnvelopeDefinition{
		EmailSubject: subject,
		Documents: []Document{{
			DocumentBase64: base64.StdEncoding.EncodeToString(input.Document),
			Name:           input.DocumentName,
			FileExtension:  ext,
			DocumentID:     "1",
		}},
		Recipients: Recipients{Signers: []Signer{{
			Email:        input.SignerEmail,
			Name:         input.SignerName,
			RecipientID:  "1",
			ClientUserID: embeddedClientUserID,
			Tabs: &Tabs{SignHereTabs: []SignHereTab{{
				AnchorString:  "/sn1/",
				AnchorUnits:   "pixels",
				AnchorXOffset: "20",
				AnchorYOffset: "10",
			}}},
		}}},
		Status: "sent",
	}
}

type envelopeCreateResponse struct {
	EnvelopeID string `json:"envelopeId"`
	Status     string `json:"status"`
}

// CreateEnvelope sends the document for signing and returns the envelope ID
// and its initial provider status.
func (c *Client) CreateEnvelope(ctx context.Context, session *Session, input EnvelopeInput) (string, string, error) {
	if len(input.Document) == 0 {
		return "", "", fmt.Errorf("envelope document is empty")
	}
	definition := NewEnvelopeDefinition(input)

	var resp envelopeCreateResponse
	if err := c.doJSON(ctx, session, http.MethodPost, "/envelopes", definition, &resp); err != nil {
		return "", "", err
	}
	if resp.EnvelopeID == "" {
		return "", "", fmt.Errorf("provider returned no envelope id")
	}
	status := resp.Status
	if status == "" {
		status = "sent"
	}
	return resp.EnvelopeID, status, nil
}

type recipientViewRequest struct {
	ReturnURL            string `json:"returnUrl"`
	AuthenticationMethod string `json:"authenticationMethod"`
	Email                string `json:"email"`
	UserName             string `json:"userName"`
	ClientUserID         string `json:"clientUserId"`
}

type recipientViewResponse struct {
	URL string `json:"url"`
}

// RecipientView returns the embedded signing URL for the envelope's signer.
func (c *Client) RecipientView(ctx context.Context, session *Session, envelopeID, signerName, signerEmail, returnURL string) (string, error) {
	payload := recipientViewRequest{
		ReturnURL:            returnURL,
		AuthenticationMethod: "none",
		Email:                signerEmail,
		UserName:             signerName,
		ClientUserID:         embeddedClientUserID,
	}

	var resp recipientViewResponse
	if err := c.doJSON(ctx, session, http.MethodPost, "/envelopes/"+envelopeID+"/views/recipient", payload, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("provider returned no signing url")
	}
	return resp.URL, nil
}

type envelopeStatusResponse struct {
	EnvelopeID     string `json:"envelopeId"`
	Status         string `json:"status"`
	StatusDateTime string `json:"statusChangedDateTime"`
}

// EnvelopeStatus fetches the envelope's current provider status.
func (c *Client) EnvelopeStatus(ctx context.Context, session *Session, envelopeID string) (string, error) {
	var resp envelopeStatusResponse
	if err := c.doJSON(ctx, session, http.MethodGet, "/envelopes/"+envelopeID, nil, &resp); err != nil {
		return "", err
	}
	return strings.ToLower(resp.Status), nil
}
