// Package tickets creates the load and disposal tickets that hang off a truck certificate.
package tickets

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/HaulTicket/internal/apperr"
	"github.com/BearBump/HaulTicket/internal/artifacts"
	"github.com/BearBump/HaulTicket/internal/broker/messages"
	"github.com/BearBump/HaulTicket/internal/models"
	"github.com/BearBump/HaulTicket/internal/observability"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Repository interface {
	CreateLoadTicket(ctx context.Context, t *models.LoadTicket, job *models.ArtifactJob) (*models.LoadTicket, error)
	CreateDisposalTicket(ctx context.Context, d *models.DisposalTicket) (*models.DisposalTicket, *models.LoadTicketDetails, error)
}

type ArtifactWriter interface {
	Locate(key string) string
	Write(ctx context.Context, job *models.ArtifactJob, body []byte) error
}

type EventEmitter interface {
	Emit(ctx context.Context, ev messages.TicketEvent)
}

type Options struct {
	Encoder   artifacts.Encoder
	Artifacts ArtifactWriter
	Events    EventEmitter
	Metrics   *observability.Metrics
	Logger    *zap.Logger
	Now       func() time.Time
}

type Service struct {
	repo      Repository
	encoder   artifacts.Encoder
	artifacts ArtifactWriter
	events    EventEmitter
	metrics   *observability.Metrics
	log       *zap.Logger
	now       func() time.Time
	validate  *validator.Validate
}

func New(repo Repository, opts Options) *Service {
	s := &Service{
		repo:      repo,
		encoder:   opts.Encoder,
		artifacts: opts.Artifacts,
		events:    opts.Events,
		metrics:   opts.Metrics,
		log:       opts.Logger,
		now:       opts.Now,
		validate:  newValidator(),
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// LoadPayload is what a load ticket QR encodes.
type LoadPayload struct {
	ShortID                   string              `json:"shortId"`
	TruckCertificationDetails map[string]any      `json:"truckCertificationDetails"`
	FieldMonitorName          string              `json:"fieldMonitorName"`
	SubActivity               string              `json:"subActivity"`
	DebrisType                string              `json:"debrisType"`
	LoadDate                  string              `json:"loadDate"`
	LoadTime                  string              `json:"loadTime"`
	Latitude                  decimal.NullDecimal `json:"latitude"`
	Longitude                 decimal.NullDecimal `json:"longitude"`
	Address                   string              `json:"address"`
	FieldMonitorNotes         string              `json:"fieldMonitorNotes"`
	TruckCapacity             decimal.NullDecimal `json:"truckCapacity"`
}

type LoadCreated struct {
	Ticket          *models.LoadTicket
	Payload         LoadPayload
	Image           []byte
	ArtifactPending bool
}

type DisposalCreated struct {
	Ticket  *models.DisposalTicket
	Details *models.LoadTicketDetails
}

// CreateLoadTicket stores a load ticket and its QR outbox row, then writes the image.
func (s *Service) CreateLoadTicket(ctx context.Context, in *LoadTicketInput) (*LoadCreated, error) {
	if in == nil {
		in = &LoadTicketInput{}
	}
	certID := certificateID(in.TruckCertificationDetails)
	if err := s.validate.Struct(in); err != nil || certID == "" || strings.TrimSpace(in.FieldMonitorName) == "" {
		return nil, apperr.Validation("truckCertificationDetails.id and fieldMonitorName are required", nil)
	}

	t := &models.LoadTicket{
		ID:                        uuid.NewString(),
		ShortID:                   "loadticket_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		TruckCertificateID:        certID,
		TruckCertificationDetails: map[string]any(in.TruckCertificationDetails),
		FieldMonitorName:          in.FieldMonitorName,
		SubActivity:               in.SubActivity,
		DebrisType:                in.DebrisType,
		LoadDate:                  in.LoadDate,
		LoadTime:                  in.LoadTime,
		Latitude:                  in.Latitude.NullDecimal,
		Longitude:                 in.Longitude.NullDecimal,
		Address:                   in.Address,
		FieldMonitorNotes:         in.FieldMonitorNotes,
		TruckCapacity:             in.TruckCapacity.NullDecimal,
		CreatedAt:                 s.now().UTC().Truncate(time.Microsecond),
	}
	key := artifacts.LoadTicketKey(t.ShortID)
	t.QRImagePath = s.artifacts.Locate(key)

	payload := LoadPayload{
		ShortID:                   t.ShortID,
		TruckCertificationDetails: t.TruckCertificationDetails,
		FieldMonitorName:          t.FieldMonitorName,
		SubActivity:               t.SubActivity,
		DebrisType:                t.DebrisType,
		LoadDate:                  t.LoadDate,
		LoadTime:                  t.LoadTime,
		Latitude:                  t.Latitude,
		Longitude:                 t.Longitude,
		Address:                   t.Address,
		FieldMonitorNotes:         t.FieldMonitorNotes,
		TruckCapacity:             t.TruckCapacity,
	}
	encoded, img, err := artifacts.Render(s.encoder, payload)
	if err != nil {
		return nil, err
	}
	job := &models.ArtifactJob{
		Key:          key,
		OwnerShortID: t.ShortID,
		ContentType:  artifacts.ContentTypePNG,
		Payload:      encoded,
	}

	saved, err := s.repo.CreateLoadTicket(ctx, t, job)
	if err != nil {
		return nil, err
	}

	pending := false
	err = s.artifacts.Write(ctx, job, img)
	s.metrics.ArtifactWrite("inline", err)
	if err != nil {
		pending = true
		s.log.Error("write load ticket artifact after commit", zap.String("key", key), zap.Error(err))
	}

	s.emit(ctx, messages.TicketEvent{
		Type:            messages.TypeLoadTicketCreated,
		ShortID:         saved.ShortID,
		ArtifactKey:     key,
		ArtifactPending: pending,
		LoadTicketID:    saved.ID,
	})

	return &LoadCreated{Ticket: saved, Payload: payload, Image: img, ArtifactPending: pending}, nil
}

// CreateDisposalTicket stores a disposal row against an existing load ticket and returns
// the load ticket joined with its truck certificate. It renders no QR of its own.
func (s *Service) CreateDisposalTicket(ctx context.Context, in *DisposalTicketInput) (*DisposalCreated, error) {
	if in == nil {
		in = &DisposalTicketInput{}
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if strings.TrimSpace(in.LoadTicketID) == "" || strings.TrimSpace(in.DisposalSite) == "" {
		return nil, apperr.Validation("load_ticket_id and disposal_site are required", nil)
	}

	d := &models.DisposalTicket{
		ID:                  uuid.NewString(),
		LoadTicketID:        strings.TrimSpace(in.LoadTicketID),
		DisposalSite:        in.DisposalSite,
		OffloadDate:         in.OffloadDate,
		OffloadTime:         in.OffloadTime,
		DebrisType:          in.DebrisType,
		LoadCall:            in.LoadCall,
		ConfirmQuantity:     in.ConfirmQuantity.NullDecimal,
		TippingTicketNumber: in.TippingTicketNumber,
		TippingFee:          in.TippingFee.NullDecimal,
		SiteMonitorNotes:    in.SiteMonitorNotes,
		SiteMonitorName:     in.SiteMonitorName,
		CreatedAt:           s.now().UTC().Truncate(time.Microsecond),
	}

	saved, details, err := s.repo.CreateDisposalTicket(ctx, d)
	if err != nil {
		return nil, err
	}

	ev := messages.TicketEvent{Type: messages.TypeDisposalTicketCreated, LoadTicketID: saved.LoadTicketID}
	if details != nil && details.LoadTicket != nil {
		ev.ShortID = details.LoadTicket.ShortID
	}
	s.emit(ctx, ev)

	return &DisposalCreated{Ticket: saved, Details: details}, nil
}

func (s *Service) emit(ctx context.Context, ev messages.TicketEvent) {
	if s.events == nil {
		return
	}
	ev.At = s.now().UTC()
	s.events.Emit(ctx, ev)
}

// certificateID reads details.id, which clients send as a string or a number.
// Numbers are printed without exponent so they match the stored reference.
func certificateID(details map[string]any) string {
	switch v := details["id"].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("invalid request", nil)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	if len(fields) == 1 && verrs[0].Tag() != "required" {
		return apperr.Validation(fmt.Sprintf("%s is invalid", fields[0]), map[string]any{"fields": fields})
	}
	return apperr.Validation("load_ticket_id and disposal_site are required", map[string]any{"fields": fields})
}
