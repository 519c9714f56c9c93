package cli

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunFetch_Table(t *testing.T) {
	cliCtx, log := testCLIContext("table")
	cmd, out := testCommand()

	err := runFetch(cmd, cliCtx, &fetchOptions{}, EngineOptions{Fetcher: &stubFetcher{}})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Cluster")
	assert.Contains(t, text, "0.7500")
	assert.Contains(t, text, "Total clusters: 2")
	// default order is size descending
	assert.Less(t, strings.Index(text, "c1"), strings.Index(text, "c2"))
	assert.True(t, log.HasMessage("info", "point cloud fetched"))
}

func TestRunFetch_SortAscending(t *testing.T) {
	cliCtx, _ := testCLIContext("table")
	cmd, out := testCommand()

	err := runFetch(cmd, cliCtx, &fetchOptions{sort: "size", dir: "asc"}, EngineOptions{Fetcher: &stubFetcher{}})
	require.NoError(t, err)
	text := out.String()
	assert.Less(t, strings.Index(text, "c2"), strings.Index(text, "c1"))
}

func TestRunFetch_JSON(t *testing.T) {
	cliCtx, _ := testCLIContext("json")
	cmd, out := testCommand()

	require.NoError(t, runFetch(cmd, cliCtx, &fetchOptions{}, EngineOptions{Fetcher: &stubFetcher{}}))

	var doc struct {
		EmbeddingID string            `json:"embedding_id"`
		Points      []json.RawMessage `json:"points"`
		Clusters    []struct {
			ID        string `json:"id"`
			NumPoints int    `json:"num_points"`
		} `json:"clusters"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, "emb", doc.EmbeddingID)
	assert.Len(t, doc.Points, 3)
	require.Len(t, doc.Clusters, 2)
}

func TestRunFetch_OtherEmbedding(t *testing.T) {
	cliCtx, _ := testCLIContext("table")
	cmd, _ := testCommand()
	f := &stubFetcher{}

	require.NoError(t, runFetch(cmd, cliCtx, &fetchOptions{embeddingID: "emb-2"}, EngineOptions{Fetcher: f}))
	assert.Equal(t, "emb-2", f.lastEmbeddingID())
}

func TestRunFetch_Failure(t *testing.T) {
	cliCtx, _ := testCLIContext("table")
	cmd, out := testCommand()

	err := runFetch(cmd, cliCtx, &fetchOptions{}, EngineOptions{Fetcher: &stubFetcher{err: errors.New("service down")}})
	require.Error(t, err)
	assert.Empty(t, out.String())
}

func TestRunFetch_InvalidSort(t *testing.T) {
	cliCtx, _ := testCLIContext("table")
	cmd, _ := testCommand()
	f := &stubFetcher{}

	err := runFetch(cmd, cliCtx, &fetchOptions{sort: "name"}, EngineOptions{Fetcher: f})
	require.Error(t, err)
	assert.Empty(t, f.lastEmbeddingID())
}
