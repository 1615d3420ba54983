package main

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements_CommentLeadingChunksSurvive(t *testing.T) {
	sqlContent := `-- header line
-- usage note

CREATE TABLE IF NOT EXISTS accounts (
    account_id UUID PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS user_profiles (
    user_id    UUID PRIMARY KEY,
    account_id UUID NOT NULL REFERENCES accounts(account_id)
);

-- comment block between statements
-- second comment line
CREATE TABLE IF NOT EXISTS devices (
    device_id UUID PRIMARY KEY
);
`
	statements := splitStatements(sqlContent)
	require.Len(t, statements, 3)
	assert.True(t, strings.HasPrefix(statements[0], "CREATE TABLE IF NOT EXISTS accounts"))
	assert.True(t, strings.HasPrefix(statements[1], "CREATE TABLE IF NOT EXISTS user_profiles"))
	assert.True(t, strings.HasPrefix(statements[2], "CREATE TABLE IF NOT EXISTS devices"))
}

func TestSplitStatements_CommentOnlyAndEmptyChunksSkipped(t *testing.T) {
	statements := splitStatements("-- only a comment\n;\n\n;-- trailing note\n")
	assert.Empty(t, statements)
}

func TestSplitStatements_SchemaFile(t *testing.T) {
	raw, err := os.ReadFile("../../db/schema.sql")
	require.NoError(t, err)

	statements := splitStatements(string(raw))
	require.NotEmpty(t, statements)
	for _, stmt := range statements {
		assert.False(t, strings.HasPrefix(stmt, "--"), "statement starts with a comment: %s", stmt)
	}

	// 文件开头与 devices 前都有注释块，对应建表语句不能被跳过
	joined := strings.Join(statements, "\n")
	assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS accounts")
	assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS devices")
	// accounts 必须先于引用它的 user_profiles
	assert.Less(t,
		strings.Index(joined, "CREATE TABLE IF NOT EXISTS accounts"),
		strings.Index(joined, "CREATE TABLE IF NOT EXISTS user_profiles"),
	)
}
