// Package claims records wallet addresses submitted for milestone rewards.
package claims

import (
	"context"
	"errors"
	"time"
)

var (
	ErrMissingFields  = errors.New("wallet address and NFT level are required")
	ErrInvalidAddress = errors.New("invalid EVM wallet address format")
	ErrInvalidLevel   = errors.New("invalid NFT level")
	ErrDuplicate      = errors.New("address already submitted for this NFT level")
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
	// RecentWindow bounds the recentSubmissions statistic.
	RecentWindow = 24 * time.Hour
)

// Address is one stored claim row.
type Address struct {
	ID            int64     `json:"id" db:"id"`
	WalletAddress string    `json:"wallet_address" db:"wallet_address"`
	NFTLevel      int       `json:"nft_level" db:"nft_level"`
	NFTName       string    `json:"nft_name" db:"nft_name"`
	UserAgent     string    `json:"-" db:"user_agent"`
	IPAddress     string    `json:"-" db:"ip_address"`
	SessionID     string    `json:"-" db:"session_id"`
	SubmittedAt   time.Time `json:"submitted_at" db:"submitted_at"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Submission is an incoming claim. UserAgent and IPAddress are filled by the transport.
type Submission struct {
	WalletAddress string `json:"walletAddress"`
	NFTLevel      int    `json:"nftLevel"`
	SessionID     string `json:"sessionId,omitempty"`
	UserAgent     string `json:"-"`
	IPAddress     string `json:"-"`
}

// ListFilter selects and pages stored claims. Zero Level and empty Address match all.
type ListFilter struct {
	Level   int
	Address string
	Limit   int
	Offset  int
}

// Normalize applies the default and maximum limit and clamps the offset.
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Page is one slice of a listing plus pagination metadata.
type Page struct {
	Items   []Address
	Total   int
	Limit   int
	Offset  int
	HasMore bool
}

type LevelCount struct {
	Level int    `json:"level" db:"nft_level"`
	Name  string `json:"name" db:"nft_name"`
	Count int    `json:"count" db:"level_count"`
}

type Stats struct {
	TotalAddresses    int          `json:"totalAddresses"`
	UniqueWallets     int          `json:"uniqueWallets"`
	RecentSubmissions int          `json:"recentSubmissions"`
	LevelBreakdown    []LevelCount `json:"levelBreakdown"`
}

// Repository persists claims. Insert must report a (wallet, level) conflict as ErrDuplicate.
type Repository interface {
	Insert(ctx context.Context, a *Address) error
	Exists(ctx context.Context, wallet string, level int) (bool, error)
	List(ctx context.Context, f ListFilter) ([]Address, int, error)
	Stats(ctx context.Context, since time.Time) (Stats, error)
}
