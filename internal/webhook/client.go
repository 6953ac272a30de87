package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client posts outbound notifications to the workflow-automation endpoints
// that bridge to the WhatsApp Business API.
type Client struct {
	MessageURL  string
	TemplateURL string
	HTTP        *http.Client
}

func NewClient(messageURL, templateURL string) *Client {
	return &Client{
		MessageURL:  messageURL,
		TemplateURL: templateURL,
		HTTP:        &http.Client{Timeout: 15 * time.Second},
	}
}

type messagePayload struct {
	MobileNumber string `json:"mobile_number"`
	Message      string `json:"message"`
}

type filePayload struct {
	MobileNumber string `json:"mobile_number"`
	FileURL      string `json:"file_url"`
	Caption      string `json:"caption"`
	FileType     string `json:"file_type"`
}

type templatePayload struct {
	CustomerName string `json:"customer_name"`
	PhoneNumber  string `json:"phone_number"`
	TemplateName string `json:"template_name"`
}

func (c *Client) SendMessage(ctx context.Context, mobileNumber, message string) error {
	return c.post(ctx, c.MessageURL, messagePayload{MobileNumber: mobileNumber, Message: message})
}

func (c *Client) SendFile(ctx context.Context, mobileNumber, fileURL, caption, fileType string) error {
	return c.post(ctx, c.MessageURL, filePayload{
		MobileNumber: mobileNumber,
		FileURL:      fileURL,
		Caption:      caption,
		FileType:     fileType,
	})
}

func (c *Client) SendTemplate(ctx context.Context, customerName, phoneNumber, templateName string) error {
	return c.post(ctx, c.TemplateURL, templatePayload{
		CustomerName: customerName,
		PhoneNumber:  phoneNumber,
		TemplateName: templateName,
	})
}

func (c *Client) post(ctx context.Context, url string, payload any) error {
	if url == "" {
		return fmt.Errorf("webhook url not configured")
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: status %d", resp.StatusCode)
	}
	return nil
}
