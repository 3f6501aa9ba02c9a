package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sweepsapp/config"
	"sweepsapp/models"

	"github.com/sirupsen/logrus"
)

var documentTypes = map[string]bool{
	"passport":        true,
	"drivers_license": true,
	"id_card":         true,
}

type KYCService struct {
	store    KYCStore
	players  PlayerStore
	notifier Notifier
	cfg      *config.Config
	now      func() time.Time
}

func NewKYCService(store KYCStore, players PlayerStore, notifier Notifier, cfg *config.Config) *KYCService {
	return &KYCService{store: store, players: players, notifier: notifier, cfg: cfg, now: time.Now}
}

type KYCInput struct {
	LegalName      string `json:"legal_name"`
	DateOfBirth    string `json:"date_of_birth"`
	AddressLine    string `json:"address_line"`
	City           string `json:"city"`
	State          string `json:"state"`
	PostalCode     string `json:"postal_code"`
	Country        string `json:"country"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
	DocumentRef    string `json:"document_ref"`
}

// age returns completed years between dob and now.
func age(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

func (s *KYCService) validate(in KYCInput) (models.KYCSubmission, error) {
	k := models.KYCSubmission{
		LegalName:    strings.TrimSpace(in.LegalName),
		AddressLine:  strings.TrimSpace(in.AddressLine),
		City:         strings.TrimSpace(in.City),
		State:        strings.ToUpper(strings.TrimSpace(in.State)),
		PostalCode:   strings.TrimSpace(in.PostalCode),
		Country:      strings.ToUpper(strings.TrimSpace(in.Country)),
		DocumentType: strings.ToLower(strings.TrimSpace(in.DocumentType)),
		DocumentRef:  strings.TrimSpace(in.DocumentRef),
	}
	if k.Country == "" {
		k.Country = "US"
	}
	doc := strings.ReplaceAll(strings.TrimSpace(in.DocumentNumber), " ", "")

	switch {
	case k.LegalName == "" || k.AddressLine == "" || k.City == "" || k.PostalCode == "":
		return k, fmt.Errorf("%w: name and full address are required", ErrInvalidInput)
	case k.Country != "US":
		return k, ErrRestrictedState
	case !validState(k.State):
		return k, fmt.Errorf("%w: state must be a 2-letter code", ErrInvalidInput)
	case !documentTypes[k.DocumentType]:
		return k, fmt.Errorf("%w: document_type must be passport, drivers_license or id_card", ErrInvalidInput)
	case len(doc) < 4:
		return k, fmt.Errorf("%w: document_number", ErrInvalidInput)
	case k.DocumentRef == "":
		return k, fmt.Errorf("%w: document_ref", ErrInvalidInput)
	}
	k.DocumentLast = doc[len(doc)-4:]

	dob, err := time.Parse(dateLayout, strings.TrimSpace(in.DateOfBirth))
	if err != nil {
		return k, fmt.Errorf("%w: date_of_birth must be YYYY-MM-DD", ErrInvalidInput)
	}
	if age(dob, s.now().UTC()) < s.cfg.KYC.MinAge {
		return k, ErrUnderage
	}
	k.DateOfBirth = dob

	if s.cfg.RestrictedState(k.State) {
		return k, ErrRestrictedState
	}
	return k, nil
}

// Submit files a verification request. Only one can be pending at a time and
// approved players cannot resubmit.
func (s *KYCService) Submit(ctx context.Context, playerID int64, in KYCInput) (*models.KYCSubmission, error) {
	p, err := s.players.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	switch p.KYCStatus {
	case models.KYCApproved:
		return nil, fmt.Errorf("%w: already verified", ErrInvalidState)
	case models.KYCPending:
		return nil, ErrDuplicate
	}

	k, err := s.validate(in)
	if err != nil {
		return nil, err
	}
	k.PlayerID = playerID
	out, err := s.store.CreateKYC(ctx, k)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"player_id": playerID, "kyc_id": out.ID}).Info("KYC submitted")
	return out, nil
}

func (s *KYCService) Get(ctx context.Context, playerID int64) (*models.KYCSubmission, error) {
	return s.store.LatestKYC(ctx, playerID)
}

func (s *KYCService) ReviewQueue(ctx context.Context, page models.Page) ([]models.KYCSubmission, error) {
	return s.store.ListKYC(ctx, models.KYCPending, page)
}

func (s *KYCService) List(ctx context.Context, status string, page models.Page) ([]models.KYCSubmission, error) {
	return s.store.ListKYC(ctx, status, page)
}

func (s *KYCService) Approve(ctx context.Context, id, adminID int64) (*models.KYCSubmission, error) {
	k, err := s.store.ReviewKYC(ctx, id, models.KYCApproved, nil, adminID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, k.PlayerID, "kyc_approved")
	return k, nil
}

func (s *KYCService) Reject(ctx context.Context, id, adminID int64, reason string) (*models.KYCSubmission, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}
	k, err := s.store.ReviewKYC(ctx, id, models.KYCRejected, &reason, adminID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, k.PlayerID, "kyc_rejected", reason)
	return k, nil
}

func (s *KYCService) notify(ctx context.Context, playerID int64, template string, args ...interface{}) {
	p, err := s.players.GetPlayer(ctx, playerID)
	if err == nil {
		err = s.notifier.Send(ctx, p.Msisdn, template, args...)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logrus.WithField("player_id", playerID).WithError(err).Warn("Failed to queue kyc sms")
	}
}
