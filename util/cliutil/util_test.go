package cliutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupDatabase(t *testing.T) {
	assert := assert.New(t)

	db, err := SetupDatabase("sqlite://"+filepath.Join(t.TempDir(), "sub", "civicmod.db"), 10)
	require.NoError(t, err)
	sqldb, err := db.DB()
	require.NoError(t, err)
	assert.Equal(1, sqldb.Stats().MaxOpenConnections)
	assert.NoError(sqldb.Ping())
	assert.NoError(sqldb.Close())

	_, err = SetupDatabase("mysql://localhost/db", 10)
	assert.Error(err)
}

func TestSetupSlog(t *testing.T) {
	assert := assert.New(t)

	logger, err := SetupSlog(LogOptions{LogLevel: "debug", LogFormat: "json", LogPath: filepath.Join(t.TempDir(), "out.log")})
	assert.NoError(err)
	assert.NotNil(logger)

	_, err = SetupSlog(LogOptions{LogLevel: "chatty"})
	assert.Error(err)
	_, err = SetupSlog(LogOptions{LogFormat: "xml"})
	assert.Error(err)
}

func TestOpenRedis(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb, err := OpenRedis(ctx, "redis://"+mr.Addr())
	require.NoError(t, err)
	assert.NoError(rdb.Close())

	_, err = OpenRedis(ctx, "not a url")
	assert.Error(err)
}
