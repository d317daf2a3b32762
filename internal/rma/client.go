// Package rma talks to the Run my Accounts REST API.
package rma

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"rmasync/internal/activitylog"
	"rmasync/internal/config"
	"rmasync/internal/logger"
)

// DefaultTimeout bounds every request, including slow XML generation upstream.
const DefaultTimeout = 120 * time.Second

// DefaultInvoicesFrom is the from-date used when an invoice query has none.
const DefaultInvoicesFrom = "1900-01-01"

// Response is the answer to a submitted document.
type Response struct {
	StatusCode int
	Status     string
	Body       []byte
}

// InvoiceQuery filters the invoice list.
type InvoiceQuery struct {
	CustomerNumber string
	From           time.Time
	To             time.Time
}

// Client is a Run my Accounts API client bound to one mandant.
type Client struct {
	httpClient *http.Client
	baseURL    string
	mandant    string
	apiKey     string
	activity   *activitylog.Logger
	log        zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithBaseURL replaces the mode's base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") + "/" }
}

// New creates a client for the active mode of cfg.
func New(cfg *config.Config, activity *activitylog.Logger, opts ...Option) *Client {
	mandant, apiKey := cfg.Credentials()
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    cfg.BaseURL(),
		mandant:    mandant,
		apiKey:     apiKey,
		activity:   activity,
		log:        logger.WithComponent("rma"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchCustomers returns all customers keyed by customer number.
func (c *Client) FetchCustomers(ctx context.Context) (map[string]CustomerSummary, error) {
	const op = "FetchCustomers"

	var list customerList
	if err := c.getXML(ctx, op, "Get Customers", "customers", nil, &list); err != nil {
		return nil, err
	}

	customers := make(map[string]CustomerSummary, len(list.Customers))
	for _, cust := range list.Customers {
		customers[cust.Number] = cust
	}
	return customers, nil
}

// FetchCustomer returns one customer.
func (c *Client) FetchCustomer(ctx context.Context, id string) (*CustomerRecord, error) {
	const op = "FetchCustomer"

	var record CustomerRecord
	if err := c.getXML(ctx, op, "Get Customer", "customers/"+url.PathEscape(id), nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// FetchInvoices returns the invoices matching the query. The slice is never nil on success.
func (c *Client) FetchInvoices(ctx context.Context, q InvoiceQuery) ([]InvoiceRecord, error) {
	const op = "FetchInvoices"

	query := url.Values{}
	if q.CustomerNumber != "" {
		query.Set("customer_number", q.CustomerNumber)
	}
	from := DefaultInvoicesFrom
	if !q.From.IsZero() {
		from = q.From.Format("2006-01-02")
	}
	query.Set("from", from)
	if !q.To.IsZero() {
		query.Set("to", q.To.Format("2006-01-02"))
	}

	var list invoiceList
	if err := c.getXML(ctx, op, "Get Customer Invoice", "invoices", query, &list); err != nil {
		return nil, err
	}
	if list.Invoices == nil {
		return []InvoiceRecord{}, nil
	}
	return list.Invoices, nil
}

// FetchInvoice returns one invoice.
func (c *Client) FetchInvoice(ctx context.Context, number string) (*InvoiceRecord, error) {
	const op = "FetchInvoice"

	var record InvoiceRecord
	if err := c.getXML(ctx, op, "Get Invoice", "invoices/"+url.PathEscape(number), nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// FetchPayables returns all vendor invoices.
func (c *Client) FetchPayables(ctx context.Context) ([]PayableRecord, error) {
	const op = "FetchPayables"

	var list payableList
	if err := c.getXML(ctx, op, "Get Payables", "payables", nil, &list); err != nil {
		return nil, err
	}
	if list.Payables == nil {
		return []PayableRecord{}, nil
	}
	return list.Payables, nil
}

// FetchParts returns the part numbers of the remote catalog.
func (c *Client) FetchParts(ctx context.Context) (PartSet, error) {
	const op = "FetchParts"

	var list partList
	if err := c.getXML(ctx, op, "Get Parts", "parts", nil, &list); err != nil {
		return nil, err
	}

	parts := make(PartSet, len(list.Parts))
	for _, p := range list.Parts {
		parts[p.PartNumber] = struct{}{}
	}
	return parts, nil
}

// FetchChartOfAccounts returns account descriptions keyed by account number.
func (c *Client) FetchChartOfAccounts(ctx context.Context) (map[string]string, error) {
	const op = "FetchChartOfAccounts"

	var list chartList
	if err := c.getXML(ctx, op, "Get Charts", "charts", nil, &list); err != nil {
		return nil, err
	}

	charts := make(map[string]string, len(list.Charts))
	for _, ch := range list.Charts {
		charts[ch.Account] = ch.Description
	}
	return charts, nil
}

// FetchInvoiceStatuses returns the status of every invoice keyed by invoice number.
func (c *Client) FetchInvoiceStatuses(ctx context.Context) (map[string]string, error) {
	invoices, err := c.FetchInvoices(ctx, InvoiceQuery{})
	if err != nil {
		return nil, err
	}

	statuses := make(map[string]string, len(invoices))
	for _, inv := range invoices {
		statuses[inv.Number] = inv.Status
	}
	return statuses, nil
}

// FetchInvoicePDF downloads the invoice PDF after checking that the invoice belongs to
// the requesting customer. The PDF is never fetched for a mismatching owner.
func (c *Client) FetchInvoicePDF(ctx context.Context, number, requesterCustomerNumber string) ([]byte, error) {
	const op = "FetchInvoicePDF"
	const section = "Get Invoice PDF"

	number = strings.ToUpper(strings.TrimSpace(number))

	var invoice InvoiceRecord
	if err := c.getXML(ctx, op, section, "invoices/"+url.PathEscape(number), nil, &invoice); err != nil {
		return nil, err
	}

	if requesterCustomerNumber == "" || invoice.Customer.Number != requesterCustomerNumber {
		c.activity.Error(ctx, section, number, "Download failed / invoice does not exist for this user")
		return nil, &APIError{Op: op, Err: ErrOwnershipMismatch}
	}

	body, header, err := c.get(ctx, op, section, "invoices/"+url.PathEscape(number)+"/pdf", nil)
	if err != nil {
		return nil, err
	}

	mediaType, _, _ := mime.ParseMediaType(header.Get("Content-Type"))
	if mediaType != "application/pdf" {
		c.activity.Error(ctx, section, number, fmt.Sprintf("Unexpected content type %q", header.Get("Content-Type")))
		return nil, &APIError{Op: op, Err: fmt.Errorf("%w: %s", ErrWrongContentType, header.Get("Content-Type"))}
	}
	if len(body) == 0 {
		c.activity.Error(ctx, section, number, "Empty PDF document")
		return nil, &APIError{Op: op, Err: ErrNotFound}
	}

	return body, nil
}

// SubmitDocument posts an XML document to a resource. Every HTTP answer is returned
// as a Response; only transport failures return an error.
func (c *Client) SubmitDocument(ctx context.Context, payload []byte, resource string) (*Response, error) {
	const op = "SubmitDocument"

	if err := c.checkCredentials(ctx, op, "Submit "+resource); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(resource, nil, false), bytes.NewReader(payload))
	if err != nil {
		return nil, &APIError{Op: op, URL: c.url(resource, nil, true), Err: errors.Join(ErrTransport, err)}
	}
	req.Header.Set("Content-Type", "application/xml")

	c.log.Debug().Str("resource", resource).Int("bytes", len(payload)).Msg("Submitting document")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Op: op, URL: c.url(resource, nil, true), Err: errors.Join(ErrTransport, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Status: resp.Status, Err: errors.Join(ErrTransport, err)}
	}

	c.log.Debug().Str("resource", resource).Int("status", resp.StatusCode).Msg("Document submitted")

	return &Response{StatusCode: resp.StatusCode, Status: resp.Status, Body: body}, nil
}

func (c *Client) checkCredentials(ctx context.Context, op, section string) error {
	if c.mandant != "" && c.apiKey != "" {
		return nil
	}
	c.activity.Error(ctx, section, "", "Missing API data")
	return &APIError{Op: op, Err: ErrMissingCredentials}
}

func (c *Client) getXML(ctx context.Context, op, section, resource string, query url.Values, v any) error {
	body, _, err := c.get(ctx, op, section, resource, query)
	if err != nil {
		return err
	}

	if err := xml.Unmarshal(body, v); err != nil {
		c.activity.Error(ctx, section, "", "Could not parse response: "+err.Error())
		return &APIError{Op: op, URL: c.url(resource, query, true), Err: errors.Join(ErrParse, err)}
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, section, resource string, query url.Values) ([]byte, http.Header, error) {
	if err := c.checkCredentials(ctx, op, section); err != nil {
		return nil, nil, err
	}

	redacted := c.url(resource, query, true)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(resource, query, false), nil)
	if err != nil {
		return nil, nil, &APIError{Op: op, URL: redacted, Err: errors.Join(ErrTransport, err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.activity.Error(ctx, section, "", fmt.Sprintf("Request failed: %v %s", redactError(err, c.apiKey), redacted))
		return nil, nil, &APIError{Op: op, URL: redacted, Err: errors.Join(ErrTransport, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.activity.Error(ctx, section, "", fmt.Sprintf("Reading response failed: %v %s", err, redacted))
		return nil, nil, &APIError{Op: op, StatusCode: resp.StatusCode, Status: resp.Status, URL: redacted, Err: errors.Join(ErrTransport, err)}
	}

	if resp.StatusCode != http.StatusOK {
		c.activity.Error(ctx, section, "", fmt.Sprintf("Response Code %d %s %s",
			resp.StatusCode, http.StatusText(resp.StatusCode), redacted))

		cause := ErrUnexpectedStatus
		if resp.StatusCode == http.StatusNotFound {
			cause = errors.Join(ErrNotFound, ErrUnexpectedStatus)
		}
		return nil, nil, &APIError{Op: op, StatusCode: resp.StatusCode, Status: resp.Status, URL: redacted, Err: cause}
	}

	return body, resp.Header, nil
}

// url builds {base}{mandant}/{resource}?api_key={key}&...
func (c *Client) url(resource string, query url.Values, redact bool) string {
	key := c.apiKey
	if redact {
		key = "REDACTED"
	}

	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteString(url.PathEscape(c.mandant))
	b.WriteString("/")
	b.WriteString(resource)
	b.WriteString("?api_key=")
	b.WriteString(url.QueryEscape(key))

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range query[k] {
			b.WriteString("&" + url.QueryEscape(k) + "=" + url.QueryEscape(v))
		}
	}
	return b.String()
}

// redactError strips the API key from errors that echo the request URL.
func redactError(err error, apiKey string) string {
	msg := err.Error()
	if apiKey == "" {
		return msg
	}
	return strings.ReplaceAll(msg, url.QueryEscape(apiKey), "REDACTED")
}
