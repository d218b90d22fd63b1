package presets

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-vault/pkg/simplevault"
)

func TestNewTesting(t *testing.T) {
	stack := NewTesting(t)
	ctx := context.Background()

	file, err := stack.Service.Upload(ctx, simplevault.UploadRequest{
		OwnerID:     uuid.New(),
		FileName:    "test.txt",
		ContentType: "text/plain",
		Reader:      strings.NewReader("Hello Testing!"),
	})
	require.NoError(t, err)

	assert.Len(t, stack.Store.Keys(), 1)
	assert.Equal(t, 1, stack.Log.Len())

	stored, err := stack.Repository.GetFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, "test.txt", stored.Name)
}

func TestNewTesting_Isolated(t *testing.T) {
	a := NewTesting(t)
	b := NewTesting(t)
	owner := uuid.New()

	_, err := a.Service.Upload(context.Background(), simplevault.UploadRequest{
		OwnerID:     owner,
		FileName:    "a.txt",
		ContentType: "text/plain",
		Reader:      strings.NewReader("a"),
	})
	require.NoError(t, err)

	files, err := b.Service.ListFiles(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestNewDevelopment_EmptySecret(t *testing.T) {
	_, err := NewDevelopment(WithSecret(""))
	assert.Error(t, err)
}

func TestNewDevelopment_ServiceOptions(t *testing.T) {
	stack, err := NewDevelopment(WithServiceOptions(simplevault.WithMaxUploadSize(4)))
	require.NoError(t, err)

	_, err = stack.Service.Upload(context.Background(), simplevault.UploadRequest{
		OwnerID:     uuid.New(),
		FileName:    "big.txt",
		ContentType: "text/plain",
		Reader:      strings.NewReader("too large"),
	})
	assert.ErrorIs(t, err, simplevault.ErrValidation)
}
