package chainsource

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provenance-network/anchor-ingestor/pkg/ingestmodel"
)

func TestDeriveContentHash_PutUsesPayloadHashField(t *testing.T) {
	payload := json.RawMessage(`{"hash":"abc123","other":"field"}`)
	got, err := deriveContentHash("put", payload)
	require.NoError(t, err)
	assert.Equal(t, "abc123", got)
}

func TestDeriveContentHash_PutMissingHashFieldErrors(t *testing.T) {
	payload := json.RawMessage(`{"other":"field"}`)
	_, err := deriveContentHash("put", payload)
	assert.Error(t, err)
}

func TestDeriveContentHash_OtherActionsHashPayload(t *testing.T) {
	payload := json.RawMessage(`{"foo":"bar"}`)
	got, err := deriveContentHash("vote", payload)
	require.NoError(t, err)
	assert.Equal(t, hashPayload(payload), got)
	assert.NotEmpty(t, got)
}

func TestDeriveContentHash_SameActionSamePayloadIsStable(t *testing.T) {
	payload := json.RawMessage(`{"foo":"bar"}`)
	a, err := deriveContentHash("finalize", payload)
	require.NoError(t, err)
	b, err := deriveContentHash("finalize", payload)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHandleMessage_FiltersByAccountAndAction(t *testing.T) {
	src := NewStreamingSource(StreamingConfig{ContractAccount: "anchor.contract"}, nil)

	blockMsg := []interface{}{
		"get_blocks_result_v0",
		map[string]interface{}{
			"this_block": map[string]interface{}{"block_num": 10, "block_id": "b10"},
			"block":      map[string]interface{}{"timestamp": 1700000000},
			"traces": []interface{}{
				map[string]interface{}{
					"id": "trx1",
					"action_traces": []interface{}{
						map[string]interface{}{
							"act": map[string]interface{}{
								"account": "anchor.contract",
								"name":    "put",
								"data":    map[string]interface{}{"hash": "deadbeef"},
							},
							"action_ordinal": 1,
						},
						map[string]interface{}{
							"act": map[string]interface{}{
								"account": "other.contract",
								"name":    "put",
								"data":    map[string]interface{}{"hash": "ignored"},
							},
							"action_ordinal": 2,
						},
						map[string]interface{}{
							"act": map[string]interface{}{
								"account": "anchor.contract",
								"name":    "transfer",
								"data":    map[string]interface{}{"hash": "ignored2"},
							},
							"action_ordinal": 3,
						},
					},
				},
			},
		},
	}
	data, err := json.Marshal(blockMsg)
	require.NoError(t, err)

	var got []ingestmodel.AnchoredEvent
	err = src.handleMessage(data, func(e ingestmodel.AnchoredEvent) ingestmodel.IngestOutcome {
		got = append(got, e)
		return ingestmodel.IngestOutcome{}
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "deadbeef", got[0].ContentHash)
	assert.Equal(t, uint64(10), got[0].BlockNum)
	assert.Equal(t, "trx1", got[0].TrxID)
	assert.Equal(t, 1, got[0].ActionOrdinal)
}

func TestHandleMessage_UnrecognizedTypeIsIgnored(t *testing.T) {
	src := NewStreamingSource(StreamingConfig{ContractAccount: "anchor.contract"}, nil)
	data, err := json.Marshal([]interface{}{"some_other_message", map[string]interface{}{}})
	require.NoError(t, err)

	var called bool
	err = src.handleMessage(data, func(_ ingestmodel.AnchoredEvent) ingestmodel.IngestOutcome {
		called = true
		return ingestmodel.IngestOutcome{}
	})
	require.NoError(t, err)
	assert.False(t, called)
}
