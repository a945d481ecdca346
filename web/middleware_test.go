package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"namiokai/db/mem"
	"namiokai/ledger"
)

func TestUserDataLoaderInjection(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := mem.NewInMemoryDBWrapper()
	require.NoError(t, store.UpsertUser(context.Background(), ledger.User{UID: "b", Name: "Bob"}))

	var names map[string]string
	r := gin.New()
	r.Use(UserDataLoaderInjectionMiddleware(store))
	r.GET("/names", func(c *gin.Context) {
		loader := userLoader(c)
		require.NotNil(t, loader)
		names = loader.DisplayNames(c.Request.Context(), []string{"b", "z"})
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/names", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, map[string]string{"b": "Bob", "z": "z"}, names)
}

func TestUserLoaderMissing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, userLoader(c))
}
