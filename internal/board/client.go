// ==============================================================================
// BOARD CLIENT - internal/board/client.go
// ==============================================================================
// Client for the work-management board holding the authoritative driver
// records. Reads return field-id keyed values; writes send a partial
// field-id -> value map and only supplied fields change. Stub mode keeps
// records in memory for local development and tests.
// ==============================================================================
package board

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"driverid/internal/domain"
	"driverid/pkg/config"
	driveriderrors "driverid/pkg/errors"
	"driverid/pkg/logger"
)

// Client reads and writes driver verification records on the board.
type Client struct {
	cfg    config.BoardConfig
	client *http.Client
	logger logger.Logger

	mu   sync.RWMutex
	stub map[string]*domain.DriverVerificationRecord
}

func NewClient(cfg config.BoardConfig, log logger.Logger) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: log,
		stub:   make(map[string]*domain.DriverVerificationRecord),
	}
}

type recordResponse struct {
	RecordID string            `json:"record_id"`
	Fields   map[string]string `json:"fields"`
}

type updateRequest struct {
	Fields map[string]string `json:"fields"`
}

// ReadRecord fetches the driver's record. Returns ErrRecordNotFound when the
// board has no row for the driver/job pair.
func (c *Client) ReadRecord(ctx context.Context, email, jobID string) (*domain.DriverVerificationRecord, error) {
	if c.cfg.Mode == config.ModeStub {
		return c.stubRead(email, jobID)
	}

	endpoint := fmt.Sprintf("%s/v1/boards/%s/records?email=%s&job=%s",
		c.cfg.URL, c.cfg.BoardID, url.QueryEscape(email), url.QueryEscape(jobID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, driveriderrors.Wrap(err, "failed to build board read request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, driveriderrors.Wrap(driveriderrors.ErrBoardUnavailable, err.Error())
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, driveriderrors.ErrRecordNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, driveriderrors.Wrap(driveriderrors.ErrBoardUnavailable,
			fmt.Sprintf("board read returned %d: %s", resp.StatusCode, body))
	}

	var rr recordResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, driveriderrors.Wrap(err, "failed to decode board record")
	}
	return fromFields(rr.Fields), nil
}

// UpdateRecord writes the record as one partial-update call.
func (c *Client) UpdateRecord(ctx context.Context, email, jobID string, rec *domain.DriverVerificationRecord) error {
	if c.cfg.Mode == config.ModeStub {
		return c.stubWrite(email, jobID, rec)
	}

	body, err := json.Marshal(updateRequest{Fields: toFields(rec)})
	if err != nil {
		return driveriderrors.Wrap(err, "failed to encode board update")
	}

	endpoint := fmt.Sprintf("%s/v1/boards/%s/records?email=%s&job=%s",
		c.cfg.URL, c.cfg.BoardID, url.QueryEscape(email), url.QueryEscape(jobID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return driveriderrors.Wrap(err, "failed to build board update request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return driveriderrors.Wrap(driveriderrors.ErrBoardUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return driveriderrors.Wrap(driveriderrors.ErrBoardUnavailable,
			fmt.Sprintf("board update returned %d: %s", resp.StatusCode, respBody))
	}

	c.logger.Debug("Board record updated", map[string]interface{}{
		"driver_email": email,
		"job_id":       jobID,
	})
	return nil
}

func stubKey(email, jobID string) string {
	return email + "|" + jobID
}

func (c *Client) stubRead(email, jobID string) (*domain.DriverVerificationRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.stub[stubKey(email, jobID)]
	if !ok {
		return nil, driveriderrors.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (c *Client) stubWrite(email, jobID string, rec *domain.DriverVerificationRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Round-trip through the field map so stub writes exercise the same
	// partial-update semantics as the live board.
	c.stub[stubKey(email, jobID)] = fromFields(toFields(rec))
	return nil
}
