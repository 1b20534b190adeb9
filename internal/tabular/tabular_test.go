package tabular

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konsi/campaign-filter/internal/domain"
)

const bom = "\xef\xbb\xbf"

func TestReadStripsBOM(t *testing.T) {
	table, err := Read(strings.NewReader(bom + "CPF,Nome_Cliente\n1,Ana\n2,\"Silva, Jose\"\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"CPF", "Nome_Cliente"}, table.Columns)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, "Silva, Jose", table.Cell(1, "Nome_Cliente"))
}

func TestReadEmpty(t *testing.T) {
	table, err := Read(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())

	table, err = Read(strings.NewReader("CPF,Nome_Cliente\n,\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len(), "blank rows are skipped")
}

func TestReadRaggedRows(t *testing.T) {
	table, err := Read(strings.NewReader("a,b,c\n1,2\n1,2,3\n"))
	require.NoError(t, err)
	assert.Equal(t, "", table.Cell(0, "c"))
	assert.Equal(t, "3", table.Cell(1, "c"))
}

func TestConcat(t *testing.T) {
	first := domain.NewTable("CPF", "Lotacao")
	first.Append("1", "SEDUC")
	second := domain.NewTable("Vinculo_Servidor", "CPF")
	second.Append("EFETIVO", "2")

	out, err := Concat(first, nil, second)
	require.NoError(t, err)

	assert.Equal(t, []string{"CPF", "Lotacao", "Vinculo_Servidor"}, out.Columns)
	assert.Equal(t, [][]string{
		{"1", "SEDUC", ""},
		{"2", "", "EFETIVO"},
	}, out.Rows)
}

func TestConcatNothing(t *testing.T) {
	_, err := Concat()
	assert.ErrorIs(t, err, domain.ErrEmptyTable)

	_, err = Concat(domain.NewTable("CPF"))
	assert.ErrorIs(t, err, domain.ErrEmptyTable)
}

func TestLoadSkipsEmptySources(t *testing.T) {
	out, err := Load(
		Source{Name: "empty.csv", Reader: strings.NewReader("")},
		Source{Name: "base.csv", Reader: strings.NewReader("CPF\n1\n")},
		Source{Name: "more.csv", Reader: strings.NewReader(bom + "CPF\n2\n")},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, out.Column("CPF"))

	_, err = Load(Source{Name: "empty.csv", Reader: strings.NewReader("")})
	assert.ErrorIs(t, err, domain.ErrEmptyTable)
}

func TestWrite(t *testing.T) {
	table := domain.NewTable("CPF", "Nome_Cliente", "Campanha")
	table.Append("1", "Ana; Maria", "govsp_10032025_novo_outbound")
	table.Append("2")

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, table))

	want := bom + "CPF;Nome_Cliente;Campanha\n" +
		"1;\"Ana; Maria\";govsp_10032025_novo_outbound\n" +
		"2;;\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteRoundTripsThroughRead(t *testing.T) {
	table := domain.NewTable("CPF", "Nome_Cliente")
	table.Append("1", "João")

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, table))

	// Exports are ';'-separated; swap for the comma reader.
	back, err := Read(strings.NewReader(strings.ReplaceAll(buf.String(), ";", ",")))
	require.NoError(t, err)
	assert.Equal(t, table, back)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "govsp-Benefício & Cartão.csv", FileName("govsp", domain.CampaignBenefitAndCard))
}
