// Package directory получает контактные данные врача из внешнего сервиса врачей.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrDoctorNotFound сервис врачей не знает такого ID
var ErrDoctorNotFound = errors.New("doctor not found")

type Doctor struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Client HTTP клиент сервиса врачей
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient создаёт клиент, timeout ограничивает каждый запрос
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// GetDoctorByID получает врача по ID
func (c *Client) GetDoctorByID(ctx context.Context, doctorID int64) (*Doctor, error) {
	url := fmt.Sprintf("%s/doctors/id/%d", c.baseURL, doctorID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build doctor request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get doctor %d: %w", doctorID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrDoctorNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get doctor %d: unexpected status %d", doctorID, resp.StatusCode)
	}

	var doctor Doctor
	if err := json.NewDecoder(resp.Body).Decode(&doctor); err != nil {
		return nil, fmt.Errorf("decode doctor %d: %w", doctorID, err)
	}
	if doctor.Email == "" {
		return nil, fmt.Errorf("doctor %d has no email", doctorID)
	}

	return &doctor, nil
}
