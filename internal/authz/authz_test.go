package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	res := Check([]string{"admin", "support"}, RoleAdmin)
	require.True(t, res.Allowed)
	require.Empty(t, res.Missing)

	res = Check([]string{"support"}, RoleAdmin)
	require.False(t, res.Allowed)
	require.Equal(t, []string{RoleAdmin}, res.Missing)

	res = Check(nil, RoleAdmin, "ops")
	require.False(t, res.Allowed)
	require.Equal(t, []string{RoleAdmin, "ops"}, res.Missing)

	res = Check([]string{"anything"})
	require.True(t, res.Allowed)
}
