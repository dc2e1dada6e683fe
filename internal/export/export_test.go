package export_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/academic-crawler/internal/crawler"
	"github.com/JakeFAU/academic-crawler/internal/export"
	"github.com/JakeFAU/academic-crawler/internal/storage/memory"
)

func TestExportWritesCorpus(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	exp, err := export.New(blobs, "/exports/")
	require.NoError(t, err)

	records := []crawler.Record{{Title: "Relativity", Field: "فيزياء", People: []string{}, Facts: []string{}}}
	uri, err := exp.Export(context.Background(), "run-1", records)
	require.NoError(t, err)
	require.Equal(t, "memory://exports/run-1/academic_data.json", uri)

	data, contentType, ok := blobs.Object("exports/run-1/academic_data.json")
	require.True(t, ok)
	require.Equal(t, export.ContentType, contentType)
	require.True(t, strings.Contains(string(data), "فيزياء"), "arabic text is written verbatim")

	var decoded []crawler.Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, records, decoded)
}

type failingBlobs struct{}

func (failingBlobs) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("disk full")
}

func TestExportErrors(t *testing.T) {
	t.Parallel()

	_, err := export.New(nil, "")
	require.Error(t, err)

	exp, err := export.New(failingBlobs{}, "")
	require.NoError(t, err)
	require.Equal(t, "r/academic_data.json", exp.ObjectPath("r"))

	_, err = exp.Export(context.Background(), "", nil)
	require.ErrorContains(t, err, "run id is required")

	_, err = exp.Export(context.Background(), "r", []crawler.Record{})
	require.ErrorContains(t, err, "upload corpus")
}
