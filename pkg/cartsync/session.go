package cartsync

import (
	"log/slog"
)

// Session wires one storefront session the way a browser tab holds it: one
// transport and cookie, one store, one bus and one idle monitor.
type Session struct {
	Config       Config
	Transport    *Transport
	Reservations *ReservationClient
	Cart         *CartClient
	Payments     *PaymentClient
	Bus          *Bus
	Store        *Store
	Monitor      *Monitor
	logger       *slog.Logger
}

func NewSession(cfg Config, logger *slog.Logger) (*Session, error) {
	t, err := NewTransport(cfg, logger)
	if err != nil {
		return nil, err
	}
	rc := NewReservationClient(t, logger)
	cc := NewCartClient(t, logger)
	bus := NewBus()
	store := NewStore(rc, cc, bus, logger)

	mon, err := NewMonitor(store, cc, MonitorConfig{
		IdleAfter:         cfg.IdleAfter,
		HeartbeatInterval: cfg.HeartbeatInterval,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &Session{
		Config:       cfg,
		Transport:    t,
		Reservations: rc,
		Cart:         cc,
		Payments:     NewPaymentClient(t, logger),
		Bus:          bus,
		Store:        store,
		Monitor:      mon,
		logger:       logger,
	}, nil
}

// View opens a product view bound to this session. Callers Run and Close it.
func (s *Session) View(productID string) *ProductView {
	return NewProductView(productID, s.Store, s.Reservations, s.Bus, s.Config.PollInterval, s.logger)
}
