package export

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zetafin/internal/core"
)

func sample() []core.Transaction {
	return []core.Transaction{
		{
			ID:          "t1",
			Description: `Lunch, "team"`,
			Amount:      core.MustMoney("250.5"),
			Type:        core.Expense,
			Date:        core.NewDate(2025, 1, 3),
			CategoryID:  " 7 ",
		},
		{
			ID:          "t2",
			Description: "Salary",
			Amount:      core.MustMoney("1000"),
			Type:        core.Income,
			Date:        core.NewDate(2025, 1, 2),
			Notes:       "january",
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample(), "u-1"))

	want := "user_id,category_id,description,amount,type,transaction_date,notes\r\n" +
		`u-1,7,"Lunch, ""team""",250.50,DESPESA,2025-01-03,""` + "\r\n" +
		`u-1,,"Salary",1000.00,RECEITA,2025-01-02,"january"` + "\r\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil, "u-1"))
	assert.Equal(t, "user_id,category_id,description,amount,type,transaction_date,notes\r\n", buf.String())
}

func TestRecords_ResolvesCategoryNames(t *testing.T) {
	idx := core.IndexCategories([]core.Category{{ID: "7", Name: "Food"}})

	recs := Records(sample(), idx)

	require.Len(t, recs, 2)
	assert.Equal(t, "Food", recs[0].Category)
	assert.Equal(t, "expense", recs[0].Type)
	assert.Equal(t, core.DefaultCategoryName, recs[1].Category)
	assert.Equal(t, "income", recs[1].Type)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sample()[:1], core.IndexCategories(nil)))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0]["id"])
	assert.Equal(t, 250.5, got[0]["amount"])
	assert.Equal(t, "2025-01-03", got[0]["date"])
	assert.Equal(t, "Outros", got[0]["category"])
	assert.Equal(t, "expense", got[0]["type"])
}

func TestWriteJSON_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil, nil))
	assert.JSONEq(t, "[]", buf.String())
}
