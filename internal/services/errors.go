package services

import (
	"errors"
	"log/slog"

	"github.com/BradenHooton/mithaq/internal/models"
)

// lookupError keeps ErrNotFound and hides every other repository error
// behind ErrInternalServer after logging it.
func lookupError(logger *slog.Logger, err error, kind, id string) error {
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrNotFound
	}
	logger.Error("failed to load "+kind, slog.String("id", id), slog.Any("error", err))
	return models.ErrInternalServer
}
