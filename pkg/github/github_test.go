package github

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/homelab/labctl/pkg/errors"
	"github.com/homelab/labctl/pkg/runner"
)

func TestListRepoSecrets(t *testing.T) {
	r := runner.NewRecorder().On("gh secret list --repo lab/app --json name",
		runner.Response{Output: `[{"name":"HARBOR_USERNAME"},{"name":"OTHER"}]`})
	names, err := New(r).ListRepoSecrets(context.Background(), "lab/app")
	require.NoError(t, err)
	assert.Equal(t, []string{"HARBOR_USERNAME", "OTHER"}, names)
}

func TestSetRepoSecret(t *testing.T) {
	r := runner.NewRecorder()
	require.NoError(t, New(r).SetRepoSecret(context.Background(), "lab/app", "HARBOR_PASSWORD", "s3cr3t"))

	calls := r.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "gh secret set HARBOR_PASSWORD --repo lab/app", calls[0].String())
	assert.Equal(t, "s3cr3t", calls[0].Stdin)
	assert.NotContains(t, calls[0].String(), "s3cr3t")

	err := New(r).SetRepoSecret(context.Background(), "lab/app", "", "x")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidRequest))
}

func TestPublish(t *testing.T) {
	secrets := []Secret{{Name: "HARBOR_USERNAME", Value: "robot$ci+push"}, {Name: "HARBOR_PASSWORD", Value: "pw"}}

	t.Run("skip existing", func(t *testing.T) {
		r := runner.NewRecorder().On("gh secret list", runner.Response{Output: `[{"name":"HARBOR_USERNAME"}]`})
		sum, err := New(r).Publish(context.Background(), []string{"lab/app"}, secrets, true)
		require.NoError(t, err)
		assert.Equal(t, Summary{Set: 1, Skipped: 1}, sum)
		assert.False(t, r.Called("gh secret set HARBOR_USERNAME"))
		assert.True(t, r.Called("gh secret set HARBOR_PASSWORD --repo lab/app"))
	})

	t.Run("overwrite", func(t *testing.T) {
		r := runner.NewRecorder()
		sum, err := New(r).Publish(context.Background(), []string{"lab/app", "lab/web"}, secrets, false)
		require.NoError(t, err)
		assert.Equal(t, Summary{Set: 4}, sum)
		assert.False(t, r.Called("gh secret list"))
	})

	t.Run("failure stops", func(t *testing.T) {
		r := runner.NewRecorder().On("gh secret set", runner.Response{ExitCode: 1, Output: "HTTP 404"})
		sum, err := New(r).Publish(context.Background(), []string{"lab/app"}, secrets, false)
		require.Error(t, err)
		assert.Zero(t, sum.Set)
		assert.Len(t, r.Calls(), 1)
	})
}

func TestAuthStatus(t *testing.T) {
	r := runner.NewRecorder().On("gh auth status", runner.Response{ExitCode: 1, Output: "You are not logged into any GitHub hosts."})
	err := New(r).AuthStatus(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnauthorized))
	assert.Contains(t, err.Error(), "not logged")
}
