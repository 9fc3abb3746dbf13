package portal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/worksmart-portal/internal/config"
	"github.com/magabrotheeeer/worksmart-portal/internal/models"
)

func TestNew_RequiresJWTSecret(t *testing.T) {
	cfg := &config.Config{
		StorageConnectionString:        "postgres://unused@127.0.0.1:1/none",
		ServiceStorageConnectionString: "postgres://unused@127.0.0.1:1/none",
	}

	app, err := New(context.Background(), cfg, newNoopLogger())

	assert.ErrorIs(t, err, models.ErrConfigurationMissing)
	assert.Nil(t, app)
}
