package offers

import (
	"context"
	"time"

	"loan-intake/internal/common/logger"
	"loan-intake/internal/models"
)

// ApplicationStore is the part of the form data store the service needs.
type ApplicationStore interface {
	Get(ctx context.Context, id string) (*models.LoanApplication, error)
	Update(ctx context.Context, id string, fn func(app *models.LoanApplication) error) (*models.LoanApplication, error)
	Commit(ctx context.Context, id string) error
}

type Service struct {
	store   ApplicationStore
	catalog []models.LoanOffer
	logger  logger.Logger
}

func NewService(store ApplicationStore, catalog []models.LoanOffer, log logger.Logger) *Service {
	if len(catalog) == 0 {
		catalog = DefaultOffers()
	}
	return &Service{store: store, catalog: catalog, logger: log}
}

// List returns the eligible offers for the application, flagging the selected one.
func (s *Service) List(ctx context.Context, appID, sortBy string) ([]models.OfferQuote, error) {
	app, err := s.store.Get(ctx, appID)
	if err != nil {
		return nil, err
	}
	quotes := Compare(s.catalog, RequestFor(app), sortBy)
	for i := range quotes {
		quotes[i].Selected = quotes[i].ID == app.SelectedOfferID
	}
	return quotes, nil
}

// Select records offerID on the application and persists it. Like document
// changes, a persistence failure keeps the in-memory selection.
func (s *Service) Select(ctx context.Context, appID, offerID string) (*models.LoanApplication, error) {
	app, err := s.store.Update(ctx, appID, func(app *models.LoanApplication) error {
		if err := Select(app, s.catalog, offerID); err != nil {
			return err
		}
		app.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Loan offer selected", map[string]interface{}{
		"applicationId": appID,
		"offerId":       offerID,
	})

	if err := s.store.Commit(ctx, appID); err != nil {
		return app, err
	}
	return app, nil
}
