package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServerKinds(t *testing.T) {
	t.Parallel()

	require.Equal(t, KindUnauthorized, Server(http.StatusUnauthorized, "").Kind)
	require.Equal(t, KindValidation, Server(http.StatusBadRequest, "bad").Kind)
	require.Equal(t, KindServer, Server(http.StatusConflict, "taken").Kind)
	require.Equal(t, KindServer, Server(http.StatusInternalServerError, "").Kind)
	require.Equal(t, KindNetwork, Server(http.StatusBadGateway, "").Kind)

	require.Equal(t, GenericMessage, Server(http.StatusInternalServerError, "").Message)
	require.Equal(t, "CONFLICT", Server(http.StatusConflict, "taken").Code)
}

func TestFromAndMessageOr(t *testing.T) {
	t.Parallel()

	t.Run("keeps api errors through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("create supplier: %w", Server(http.StatusConflict, "Email already used"))
		require.Equal(t, "Email already used", From(wrapped).Message)
		require.Equal(t, "Email already used", MessageOr(wrapped, "default"))
		require.True(t, IsKind(wrapped, KindServer))
	})

	t.Run("plain errors become network errors", func(t *testing.T) {
		err := From(errors.New("dial tcp: refused"))
		require.Equal(t, KindNetwork, err.Kind)
		require.Equal(t, "default", MessageOr(err, "default"))
	})

	t.Run("nil stays nil", func(t *testing.T) {
		require.Nil(t, From(nil))
	})
}
