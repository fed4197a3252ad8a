package risk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Dan9191/microsave/internal/config"
	"github.com/Dan9191/microsave/internal/models"
	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
)

const riskNamespace = "http://microsave.local/risk/"

// Client handles integration with the external credit risk service
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

// NewClient initializes a new risk service client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		url: cfg.RiskURL,
		client: &http.Client{
			Timeout: cfg.RiskTimeout,
		},
		log: log,
	}
}

// buildSOAPRequest creates a SOAP envelope carrying the borrower profile
func (c *Client) buildSOAPRequest(profile models.BorrowerProfile) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	envelope := doc.CreateElement("soap12:Envelope")
	envelope.CreateAttr("xmlns:soap12", "http://www.w3.org/2003/05/soap-envelope")
	body := envelope.CreateElement("soap12:Body")

	req := body.CreateElement("EvaluateBorrower")
	req.CreateAttr("xmlns", riskNamespace)
	req.CreateElement("AccountId").SetText(strconv.FormatInt(profile.AccountID, 10))
	req.CreateElement("TransactionCount").SetText(strconv.Itoa(profile.TransactionCount))
	req.CreateElement("SavingsBalance").SetText(profile.SavingsBalance.StringFixed(2))
	req.CreateElement("RepaidLoans").SetText(strconv.Itoa(profile.RepaidLoans))
	req.CreateElement("ActiveLoans").SetText(strconv.Itoa(profile.ActiveLoans))

	return doc.WriteToBytes()
}

// sendRequest sends the SOAP request to the risk service
func (c *Client) sendRequest(ctx context.Context, soapRequest []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(soapRequest))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	req.Header.Set("SOAPAction", riskNamespace+"EvaluateBorrower")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debugf("Risk service XML response: %s", string(body))
	return body, nil
}

// parseXMLResponse extracts the decision label from the response
func (c *Client) parseXMLResponse(rawBody []byte) (Decision, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return Unavailable, fmt.Errorf("failed to parse XML: %w", err)
	}

	el := doc.FindElement("//EvaluateBorrowerResult/Decision")
	if el == nil {
		return Unavailable, fmt.Errorf("decision element not found in XML")
	}
	return parseDecision(el.Text())
}

// parseDecision maps the service label onto a decision. Sentiment style
// labels are accepted too: positive and neutral approve, negative denies.
func parseDecision(label string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "approve", "approved", "positive", "neutral":
		return Approve, nil
	case "deny", "denied", "negative":
		return Deny, nil
	default:
		return Unavailable, fmt.Errorf("unknown decision label %q", label)
	}
}

// Evaluate asks the risk service for a decision on the profile
func (c *Client) Evaluate(ctx context.Context, profile models.BorrowerProfile) (Decision, error) {
	soapRequest, err := c.buildSOAPRequest(profile)
	if err != nil {
		return Unavailable, fmt.Errorf("failed to build request: %w", err)
	}

	body, err := c.sendRequest(ctx, soapRequest)
	if err != nil {
		return Unavailable, err
	}

	decision, err := c.parseXMLResponse(body)
	if err != nil {
		return Unavailable, err
	}

	c.log.WithFields(logrus.Fields{
		"account_id":        profile.AccountID,
		"transaction_count": profile.TransactionCount,
		"repaid_loans":      profile.RepaidLoans,
		"active_loans":      profile.ActiveLoans,
	}).Infof("Risk decision: %s", decision)
	return decision, nil
}
