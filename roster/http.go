package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/warp/leave-engine/generic"
)

const (
	employeesPath  string = "%s/orgs/%s/employees"
	defaultTimeout        = 10 * time.Second
	maxBodySize           = 8 << 20
)

// HTTPSource reads the roster from a JSON endpoint serving []Record at
// <BaseURL>/orgs/<org>/employees.
type HTTPSource struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPSource(baseURL, token string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: timeout},
	}
}

// Fetch returns the organization's roster. Every failure wraps
// generic.ErrRosterUnavailable.
func (h *HTTPSource) Fetch(ctx context.Context, orgID generic.OrgID) ([]Record, error) {
	uri := fmt.Sprintf(employeesPath, h.BaseURL, url.PathEscape(string(orgID)))
	logger := log.
		WithField("external_request", uri).
		WithField("org_id", orgID)

	r, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, errors.Wrapf(generic.ErrRosterUnavailable, "build request: %s", err)
	}
	r.Header.Add("Accept", "application/json")
	if h.Token != "" {
		r.Header.Add("Authorization", "Bearer "+h.Token)
	}

	resp, err := h.Client.Do(r)
	if err != nil {
		logger.WithError(err).Warn("roster request failed")
		return nil, errors.Wrapf(generic.ErrRosterUnavailable, "request: %s", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrapf(generic.ErrRosterUnavailable, "read body: %s", err)
	}
	if resp.StatusCode != http.StatusOK {
		logger.
			WithField("status", resp.StatusCode).
			WithField("response_body", string(body)).
			Warn("roster responded with unexpected status")
		return nil, errors.Wrapf(generic.ErrRosterUnavailable, "status %d", resp.StatusCode)
	}

	var records []Record
	if err := json.Unmarshal(body, &records); err != nil {
		logger.WithError(err).Warn("roster response is not a record list")
		return nil, errors.Wrapf(generic.ErrRosterUnavailable, "decode: %s", err)
	}
	logger.WithField("records", len(records)).Debug("roster fetched")
	return records, nil
}
