package jwt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgjwt "github.com/jhoicas/spa-ledger-api/pkg/jwt"
)

func TestGenerateParse(t *testing.T) {
	token, err := pkgjwt.Generate("s3cret", "u1", pkgjwt.RoleCashier, "spa-identity", time.Minute)
	require.NoError(t, err)

	claims, err := pkgjwt.Parse("s3cret", "spa-identity", token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, pkgjwt.RoleCashier, claims.Role)

	_, err = pkgjwt.Parse("otro", "spa-identity", token)
	assert.Error(t, err)
	_, err = pkgjwt.Parse("s3cret", "otro-emisor", token)
	assert.Error(t, err)
}

func TestParse_Expirado(t *testing.T) {
	token, err := pkgjwt.Generate("s3cret", "u1", pkgjwt.RoleAdmin, "", -time.Minute)
	require.NoError(t, err)
	_, err = pkgjwt.Parse("s3cret", "", token)
	assert.Error(t, err)
}
