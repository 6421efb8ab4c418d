package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validJSON = `{
  "fullName": "Jane Doe",
  "email": "jane@example.com",
  "phone": "5551234",
  "company": "Acme",
  "serviceInterest": "Directional Boring",
  "projectType": "Commercial",
  "timeline": "1-3 months",
  "location": "Baton Rouge, LA",
  "message": "Conduit under a road"
}`

func runValidateWith(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	validateCmd.SetIn(strings.NewReader(stdin))
	validateCmd.SetOut(&out)
	t.Cleanup(func() {
		validateCmd.SetIn(nil)
		validateCmd.SetOut(nil)
	})
	err := runValidate(validateCmd, args)
	return out.String(), err
}

func TestValidateFromStdin(t *testing.T) {
	out, err := runValidateWith(t, validJSON)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestValidateReportsEveryError(t *testing.T) {
	out, err := runValidateWith(t, `{"email":"nope"}`, "-")
	require.ErrorIs(t, err, errInvalid)
	assert.Contains(t, out, "fullName: is required")
	assert.Contains(t, out, "email: must be a valid email address")
	assert.Contains(t, out, "timeline: is required")
}

func TestValidateFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quote.json")
	require.NoError(t, os.WriteFile(path, []byte(validJSON), 0o600))

	out, err := runValidateWith(t, "", path)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestValidateRejectsUnknownFieldsAndGarbage(t *testing.T) {
	_, err := runValidateWith(t, `{"nickname":"JD"}`)
	assert.ErrorContains(t, err, "nickname")

	_, err = runValidateWith(t, `[1,2]`)
	assert.ErrorContains(t, err, "decode record")
}
