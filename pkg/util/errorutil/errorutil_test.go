package errorutil_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vicmordi/AIHelpdesk/pkg/util/errorutil"
)

func TestToDomainErrorMapsKnownErrors(t *testing.T) {
	notFound := apperrors.ToDomainError(fmt.Errorf("load ticket: %w", pgx.ErrNoRows))
	require.NotNil(t, notFound)
	assert.Equal(t, apperrors.CodeNotFound, notFound.Code)
	assert.Equal(t, http.StatusNotFound, notFound.HTTPStatus)

	timeout := apperrors.ToDomainError(context.DeadlineExceeded)
	assert.Equal(t, apperrors.CodeTimeout, timeout.Code)

	internal := apperrors.ToDomainError(errors.New("boom"))
	assert.Equal(t, apperrors.CodeInternal, internal.Code)
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)

	assert.Nil(t, apperrors.ToDomainError(nil))
	assert.NoError(t, apperrors.MapError(nil))
}

func TestHasCodeUnwraps(t *testing.T) {
	err := fmt.Errorf("assign: %w", apperrors.NewInvalidTransition("closed", "open"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
	assert.False(t, apperrors.HasCode(err, apperrors.CodeConflict))

	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, http.StatusConflict, domainErr.HTTPStatus)
}
