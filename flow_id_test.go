package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlowIdGeneration(t *testing.T) {
	// each byte is represented by 2 hex characters so length will be doubled
	flowId := GenerateFlowId()
	require.Len(t, flowId, 32)

	other := GenerateFlowId()
	require.NotEqual(t, flowId, other)
}
