package checks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalJSONExprBoolField(t *testing.T) {
	body := []byte(`{"status": {"ready": true}}`)
	ok, err := evalJSONExpr(body, ".status.ready == true")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvalJSONExprStringField(t *testing.T) {
	body := []byte(`{"version": "1.2.3"}`)
	ok, err := evalJSONExpr(body, `.version == "1.2.3"`)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvalJSONExprIntegerField(t *testing.T) {
	body := []byte(`{"count": 42}`)
	ok, err := evalJSONExpr(body, ".count == 42")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvalJSONExprMismatch(t *testing.T) {
	body := []byte(`{"count": 41}`)
	ok, err := evalJSONExpr(body, ".count == 42")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvalJSONExprMissingPath(t *testing.T) {
	body := []byte(`{"other": 1}`)
	ok, err := evalJSONExpr(body, ".count == 42")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvalJSONExprNullLiteral(t *testing.T) {
	body := []byte(`{"value": null}`)
	ok, err := evalJSONExpr(body, ".value == null")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvalJSONExprBadSyntax(t *testing.T) {
	_, err := evalJSONExpr([]byte(`{}`), "status.ready == true")
	assert.Error(t, err)

	_, err = evalJSONExpr([]byte(`{}`), "no operator here")
	assert.Error(t, err)
}

func TestEvalJSONExprInvalidBody(t *testing.T) {
	_, err := evalJSONExpr([]byte(`not json`), ".a == 1")
	assert.Error(t, err)
}
