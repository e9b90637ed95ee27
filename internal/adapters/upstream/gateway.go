package upstream

// Package upstream implements the HTTP client to the remote outpass
// management API, which performs credential verification, password resets,
// and serves dashboard aggregates.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/mith/outpass-portal/internal/domain/outpass"
	"github.com/mith/outpass-portal/internal/domain/session"
	apperrors "github.com/mith/outpass-portal/internal/errors"
	"github.com/mith/outpass-portal/internal/ports"
)

// genericNetworkError is shown to users when the identity API is unreachable.
const genericNetworkError = "Network error. Please try again."

const defaultTimeout = 10 * time.Second

// Config controls the gateway client.
type Config struct {
	// BaseURL is the identity API root, e.g. "https://outpass.example.edu".
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Gateway is the production IdentityGateway backed by net/http.
type Gateway struct {
	base   *url.URL
	client *http.Client
}

var _ ports.IdentityGateway = (*Gateway)(nil)

// NewGateway validates config and constructs a Gateway.
func NewGateway(cfg Config) (*Gateway, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway: BaseURL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("gateway: parse base URL: %w", err)
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Gateway{base: base, client: client}, nil
}

// loginResponse is the identity API's login wire shape.
type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Message string `json:"message"`
	User    struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Name     string `json:"name"`
		Role     string `json:"role"`
		Hostel   string `json:"hostel"`
	} `json:"user"`
}

// Login verifies credentials against the identity API. A business rejection
// (wrong password, unknown user) comes back as Success=false with a message;
// only transport or decode failures return an error.
func (g *Gateway) Login(ctx context.Context, in ports.LoginInput) (ports.LoginResult, error) {
	payload := map[string]string{
		"username": in.Username,
		"password": in.Password,
		"role":     string(in.Role),
	}

	body, status, err := g.post(ctx, "/api/auth/login", payload)
	if err != nil {
		return ports.LoginResult{}, err
	}

	var resp loginResponse
	if decodeErr := json.Unmarshal(body, &resp); decodeErr != nil {
		return ports.LoginResult{}, apperrors.Wrap(decodeErr, apperrors.ErrCodeUpstream, genericNetworkError)
	}

	result := ports.LoginResult{
		Success: resp.Success && status < http.StatusBadRequest,
		Token:   resp.Token,
		Message: resp.Message,
		User: session.Identity{
			ID:          resp.User.ID,
			Username:    resp.User.Username,
			DisplayName: resp.User.Name,
			Role:        session.Role(strings.ToUpper(resp.User.Role)),
			Hostel:      resp.User.Hostel,
		},
	}
	return result, nil
}

// Reset success/message flags are not strictly typed upstream; the indicator
// may sit at top level or nested under data. These expressions are the single
// place that shape tolerance lives.
const (
	resetSuccessExpr = "success || data.success"
	resetMessageExpr = "message || data.message"
)

// ResetPassword requests a self-service password reset. Only a transport or
// HTTP-level failure produces an error; the caller applies the portal's
// lenient-success policy to any outcome returned here.
func (g *Gateway) ResetPassword(ctx context.Context, in ports.ResetInput) (ports.ResetOutcome, error) {
	payload := map[string]string{
		"usernameOrEmail": in.UsernameOrEmail,
		"mobileNumber":    in.MobileNumber,
		"newPassword":     in.NewPassword,
	}

	body, status, err := g.post(ctx, "/api/auth/reset-password", payload)
	if err != nil {
		return ports.ResetOutcome{}, err
	}
	if status >= http.StatusBadRequest {
		msg := genericNetworkError
		if m := searchString(resetMessageExpr, body); m != "" {
			msg = m
		}
		return ports.ResetOutcome{}, apperrors.Upstream(msg)
	}

	return normalizeResetOutcome(body), nil
}

// normalizeResetOutcome reduces the loosely-shaped reset response body to
// the canonical outcome.
func normalizeResetOutcome(body []byte) ports.ResetOutcome {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		// Undecodable 2xx body: no flag to report, message empty.
		return ports.ResetOutcome{}
	}

	out := ports.ResetOutcome{Message: searchStringDoc(resetMessageExpr, doc)}
	if v, err := jmespath.Search(resetSuccessExpr, doc); err == nil {
		if flag, ok := v.(bool); ok {
			out.Acknowledged = flag
		}
	}
	return out
}

// statsExprs map canonical stat fields to tolerant upstream lookups; older
// API versions use the *Outpasses names, newer ones the short forms, and
// either may nest the object under data.
var statsExprs = map[string]string{
	"total":     "data.totalOutpasses || totalOutpasses || data.total || total",
	"pending":   "data.pendingOutpasses || pendingOutpasses || data.pending || pending",
	"approved":  "data.approvedOutpasses || approvedOutpasses || data.approved || approved",
	"active":    "data.activeOutpasses || activeOutpasses || data.active || active",
	"completed": "data.completedOutpasses || completedOutpasses || data.completed || completed",
	"rejected":  "data.rejectedOutpasses || rejectedOutpasses || data.rejected || rejected",
}

// Stats fetches the dashboard aggregates for a role. Missing counts come
// back as zero.
func (g *Gateway) Stats(ctx context.Context, token string, role session.Role) (outpass.Stats, error) {
	doc, err := g.getJSON(ctx, "/api/"+strings.ToLower(string(role))+"/stats", token)
	if err != nil {
		return outpass.Stats{}, err
	}

	stats := outpass.Stats{
		Total:     searchInt(statsExprs["total"], doc),
		Pending:   searchInt(statsExprs["pending"], doc),
		Approved:  searchInt(statsExprs["approved"], doc),
		Active:    searchInt(statsExprs["active"], doc),
		Completed: searchInt(statsExprs["completed"], doc),
		Rejected:  searchInt(statsExprs["rejected"], doc),
	}
	return stats, nil
}

// Outpass list responses vary the same way stats do: the array may sit at
// the top level or under data, and date fields differ between API versions
// (leaveStartDate vs fromDate, expectedReturnDate vs toDate).
const recordListExpr = "data.outpasses || outpasses || data.records || records"

var recordExprs = map[string]string{
	"id":          "_id || id",
	"status":      "status",
	"destination": "destination || place",
	"reason":      "reason || purpose",
	"from":        "leaveStartDate || fromDate",
	"to":          "expectedReturnDate || toDate",
	"roll":        "studentRollNumber || rollNumber || student.rollNumber",
	"hostel":      "hostelName || hostel || student.hostel",
}

// Recent fetches the role's outpass entries for the dashboard list,
// normalized to the canonical record shape.
func (g *Gateway) Recent(ctx context.Context, token string, role session.Role) ([]outpass.Record, error) {
	doc, err := g.getJSON(ctx, "/api/"+strings.ToLower(string(role))+"/outpasses", token)
	if err != nil {
		return nil, err
	}

	v, searchErr := jmespath.Search(recordListExpr, doc)
	if searchErr != nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		// Some deployments return the bare array as the whole body.
		if list, ok = doc.([]any); !ok {
			return nil, nil
		}
	}

	records := make([]outpass.Record, 0, len(list))
	for _, item := range list {
		records = append(records, outpass.Record{
			ID:                searchStringDoc(recordExprs["id"], item),
			Status:            searchStringDoc(recordExprs["status"], item),
			Destination:       searchStringDoc(recordExprs["destination"], item),
			Reason:            searchStringDoc(recordExprs["reason"], item),
			FromDate:          searchStringDoc(recordExprs["from"], item),
			ToDate:            searchStringDoc(recordExprs["to"], item),
			StudentRollNumber: searchStringDoc(recordExprs["roll"], item),
			HostelName:        searchStringDoc(recordExprs["hostel"], item),
		})
	}
	return records, nil
}

// getJSON performs an authorized GET and decodes the response body.
func (g *Gateway) getJSON(ctx context.Context, path, token string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.base.JoinPath(path).String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUpstream, genericNetworkError)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUpstream, genericNetworkError)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apperrors.Upstream(fmt.Sprintf("request to %s failed with status %d", path, resp.StatusCode))
	}

	var doc any
	if decodeErr := json.Unmarshal(body, &doc); decodeErr != nil {
		return nil, apperrors.Wrap(decodeErr, apperrors.ErrCodeUpstream, genericNetworkError)
	}
	return doc, nil
}

// post sends a JSON body and returns the raw response body and status.
func (g *Gateway) post(ctx context.Context, path string, payload any) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.base.JoinPath(path).String(), bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.ErrCodeUpstream, genericNetworkError)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.ErrCodeUpstream, genericNetworkError)
	}
	return body, resp.StatusCode, nil
}

func searchString(expr string, body []byte) string {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}
	return searchStringDoc(expr, doc)
}

func searchStringDoc(expr string, doc any) string {
	v, err := jmespath.Search(expr, doc)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func searchInt(expr string, doc any) int {
	v, err := jmespath.Search(expr, doc)
	if err != nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
