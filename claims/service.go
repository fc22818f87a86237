package claims

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tilequest/core"
)

// Publisher receives address_submitted events.
type Publisher interface {
	Publish(ctx context.Context, e core.Event)
}

type Option func(*Service)

func WithPublisher(p Publisher) Option { return func(s *Service) { s.pub = p } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }

// Service validates submissions and fronts a Repository.
type Service struct {
	repo   Repository
	pub    Publisher
	now    func() time.Time
	logger zerolog.Logger
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now, logger: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Validate checks a submission without touching storage.
func Validate(sub Submission) error {
	if sub.WalletAddress == "" || sub.NFTLevel == 0 {
		return ErrMissingFields
	}
	if core.ValidateWalletAddress(sub.WalletAddress) != nil {
		return ErrInvalidAddress
	}
	if !core.IsRewardTier(sub.NFTLevel) {
		return ErrInvalidLevel
	}
	return nil
}

// Submit stores a new claim and returns it with its generated id.
func (s *Service) Submit(ctx context.Context, sub Submission) (Address, error) {
	if err := Validate(sub); err != nil {
		return Address{}, err
	}
	exists, err := s.repo.Exists(ctx, sub.WalletAddress, sub.NFTLevel)
	if err != nil {
		return Address{}, fmt.Errorf("check existing claim: %w", err)
	}
	if exists {
		return Address{}, ErrDuplicate
	}

	now := s.now().UTC()
	a := Address{
		WalletAddress: sub.WalletAddress,
		NFTLevel:      sub.NFTLevel,
		NFTName:       core.RewardTiers[sub.NFTLevel].Name,
		UserAgent:     sub.UserAgent,
		IPAddress:     sub.IPAddress,
		SessionID:     sub.SessionID,
		SubmittedAt:   now,
		CreatedAt:     now,
	}
	// Exists and Insert are not atomic; the unique constraint settles races.
	if err := s.repo.Insert(ctx, &a); err != nil {
		return Address{}, err
	}
	s.logger.Info().
		Int64("id", a.ID).
		Str("wallet", core.ShortAddress(a.WalletAddress)).
		Int("level", a.NFTLevel).
		Msg("address submitted")
	if s.pub != nil {
		s.pub.Publish(ctx, core.NewAddressSubmitted(sub.SessionID, a.NFTLevel, a.WalletAddress, a.ID))
	}
	return a, nil
}

// SubmitClaim lets the service act as an in-process claim submitter.
func (s *Service) SubmitClaim(ctx context.Context, wallet string, level int, sessionID string) (int64, error) {
	a, err := s.Submit(ctx, Submission{WalletAddress: wallet, NFTLevel: level, SessionID: sessionID})
	return a.ID, err
}

// List returns claims newest first.
func (s *Service) List(ctx context.Context, f ListFilter) (Page, error) {
	f = f.Normalize()
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return Page{}, fmt.Errorf("list claims: %w", err)
	}
	if items == nil {
		items = []Address{}
	}
	return Page{
		Items:   items,
		Total:   total,
		Limit:   f.Limit,
		Offset:  f.Offset,
		HasMore: f.Offset+f.Limit < total,
	}, nil
}

// Stats aggregates the stored claims.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	st, err := s.repo.Stats(ctx, s.now().UTC().Add(-RecentWindow))
	if err != nil {
		return Stats{}, fmt.Errorf("claim stats: %w", err)
	}
	if st.LevelBreakdown == nil {
		st.LevelBreakdown = []LevelCount{}
	}
	return st, nil
}
