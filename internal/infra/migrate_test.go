package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSQL_DropsCommentsAndBlanks(t *testing.T) {
	in := `-- schema
CREATE TABLE a (id TEXT);

  -- another
CREATE INDEX a_idx ON a (id);
`
	assert.Equal(t, []string{"CREATE TABLE a (id TEXT)", "CREATE INDEX a_idx ON a (id)"}, SplitSQL(in))
}

func TestSplitSQL_Empty(t *testing.T) {
	assert.Empty(t, SplitSQL("-- nothing here\n\n"))
}
