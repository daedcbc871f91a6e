package artifactstore

import (
	"context"
	"testing"

	"github.com/BearBump/HaulTicket/config"
	"github.com/BearBump/HaulTicket/internal/artifacts"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	st, err := Open(context.Background(), config.ArtifactsConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	require.Equal(t, artifacts.DriverFilesystem, st.Driver())

	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	st, err = Open(context.Background(), config.ArtifactsConfig{
		Driver: "s3", S3Bucket: "tickets", S3Endpoint: "http://127.0.0.1:9000", S3PathStyle: true,
	})
	require.NoError(t, err)
	require.Equal(t, artifacts.DriverS3, st.Driver())
	require.Equal(t, "s3://tickets/qrcode_qr_1.png", st.Locate("qrcode_qr_1.png"))

	_, err = Open(context.Background(), config.ArtifactsConfig{Driver: "s3"})
	require.Error(t, err)

	_, err = Open(context.Background(), config.ArtifactsConfig{Driver: "gcs"})
	require.Error(t, err)
}
