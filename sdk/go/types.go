package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"tilequest/claims"
)

// SubmittedClaim is the data echoed back by POST /addresses.
type SubmittedClaim struct {
	ID            int64     `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	NFTLevel      int       `json:"nft_level"`
	NFTName       string    `json:"nft_name"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// ListOptions filters GET /addresses. Zero values are omitted.
type ListOptions struct {
	Level   int
	Address string
	Limit   int
	Offset  int
}

// Pagination mirrors the list response metadata.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// AddressPage is one page of stored claims.
type AddressPage struct {
	Addresses  []claims.Address
	Pagination Pagination
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string         `json:"status"`
	Checks map[string]any `json:"checks"`
}

// APIError is a non-2xx response. It unwraps to the matching claims sentinel
// so callers can use errors.Is(err, claims.ErrDuplicate).
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("tilequest api: %d %s (%s)", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("tilequest api: %d %s", e.StatusCode, e.Message)
}

var badRequestErrors = map[string]error{
	"Wallet address and NFT level are required": claims.ErrMissingFields,
	"Invalid EVM wallet address format":         claims.ErrInvalidAddress,
	"Invalid NFT level":                         claims.ErrInvalidLevel,
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusConflict:
		return claims.ErrDuplicate
	case http.StatusBadRequest:
		return badRequestErrors[e.Message]
	}
	return nil
}

// ErrEmptyWallet is returned before any request when no wallet is given.
var ErrEmptyWallet = errors.New("wallet address is required")

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		return readAPIError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body struct {
		Error   string `json:"error"`
		Details any    `json:"details"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
		if body.Details != nil {
			apiErr.Details = fmt.Sprint(body.Details)
		}
	}
	return apiErr
}
