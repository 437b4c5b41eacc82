package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sluice/internal/objstore"
	"sluice/internal/spec"
	"sluice/internal/transform"
	"sluice/internal/warehouse"
	"sluice/sink"
)

const fuelCSV = "Regiao - Sigla;Estado - Sigla;Municipio;Revenda;CNPJ da Revenda;Nome da Rua;Numero Rua;Complemento;Bairro;Cep;Produto;Data da Coleta;Valor de Venda;Valor de Compra;Unidade de Medida;Bandeira\n" +
	"SE;SP;SAO PAULO;POSTO X;00.000.000/0001-00;RUA A;100;;CENTRO;01000-000;GASOLINA;01/07/2022;5,49;;R$ / litro;RAIZEN\n"

type fakeWarehouse struct {
	loads []string
	err   error
}

func (w *fakeWarehouse) LoadParquet(_ context.Context, src string, table warehouse.TableRef) error {
	w.loads = append(w.loads, src+" -> "+table.String())
	return w.err
}

func (w *fakeWarehouse) TableSchema(context.Context, warehouse.TableRef) (transform.Schema, error) {
	return transform.DefaultSchema(), w.err
}

type env struct {
	dir   string
	input string
	out   string
	store *objstore.Mux
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(input, []byte(fuelCSV), 0o644))
	store := objstore.NewMux().
		Handle(objstore.SchemeFile, objstore.NewFileStore("")).
		Handle(objstore.SchemeGCS, objstore.NewFileStore(filepath.Join(dir, "gcs")))
	return env{dir: dir, input: input, out: filepath.Join(dir, "out") + "/", store: store}
}

func TestCompile_DefaultPipelineEndToEnd(t *testing.T) {
	e := newEnv(t)
	wh := &fakeWarehouse{}

	r, err := Compile(spec.Default(),
		Args{Input: e.input, Output: e.out, Format: "csv", Table: "dc_bq_dataset.dc_table"},
		Deps{Store: e.store, Warehouse: wh, StagingBucket: "staging", RunID: "run1"})
	require.NoError(t, err)

	rep := r.Run(t.Context())
	require.NoError(t, rep.Err())
	assert.Equal(t, 1, rep.RowsRead)
	assert.Equal(t, 1, rep.RowsOut)
	assert.Equal(t, transform.CoerceStats{"valor_de_venda": 1}, rep.Nulled, "5,49 is not a double without decimal_comma")
	require.Len(t, rep.Sinks, 3)

	body, err := os.ReadFile(filepath.Join(e.dir, "out", "part-00000-run1-c000.csv"))
	require.NoError(t, err)
	inURI, err := objstore.Parse(e.input)
	require.NoError(t, err)
	assert.Equal(t,
		"SE,SP,SAO PAULO,POSTO X,00.000.000/0001-00,RUA A,100,,CENTRO,01000-000,GASOLINA,2022-07-01,,,R$ / litro,RAIZEN,2022,2,"+inURI.String()+"\n",
		string(body))

	assert.Equal(t, []string{"gs://staging/.sluice-staging/run1/part-00000.parquet -> dc_bq_dataset.dc_table"}, wh.loads)
}

func TestCompile_DecimalCommaAndHeader(t *testing.T) {
	e := newEnv(t)
	file := spec.Default()
	file.Stages[len(file.Stages)-1].DecimalComma = true
	file.Sinks = []string{"objectstore"}
	file.SinkConfigs.ObjectStore.CSVHeader = true
	file.TargetSchema = transform.Schema{
		{Name: "municipio", Type: "string"},
		{Name: "valor_de_venda", Type: "float"},
		{Name: "semestre", Type: "int"},
	}

	r, err := Compile(file,
		Args{Input: e.input, Output: e.out, Format: "csv", Table: "ds.t"},
		Deps{Store: e.store, Warehouse: &fakeWarehouse{}, RunID: "run2"})
	require.NoError(t, err)
	rep := r.Run(t.Context())
	require.NoError(t, rep.Err())

	body, err := os.ReadFile(filepath.Join(e.dir, "out", "part-00000-run2-c000.csv"))
	require.NoError(t, err)
	assert.Equal(t, "municipio,valor_de_venda,semestre\nSAO PAULO,5.49,2\n", string(body))
}

func TestCompile_NonFiniteDoublesWriteJSON(t *testing.T) {
	e := newEnv(t)
	input := filepath.Join(e.dir, "odd.csv")
	require.NoError(t, os.WriteFile(input, []byte(
		"Municipio;Data da Coleta;Valor de Venda;Valor de Compra\n"+
			"SAO PAULO;01/07/2022;NaN;Infinity\n"+
			"SANTOS;02/07/2022;0x1p3;5.10\n"), 0o644))
	file := spec.Default()
	file.Sinks = []string{"objectstore"}

	r, err := Compile(file,
		Args{Input: input, Output: e.out, Format: "json", Table: "ds.t"},
		Deps{Store: e.store, Warehouse: &fakeWarehouse{}, RunID: "run5"})
	require.NoError(t, err)
	rep := r.Run(t.Context())
	require.NoError(t, rep.Err())
	assert.Equal(t, transform.CoerceStats{"valor_de_venda": 2, "valor_de_compra": 1}, rep.Nulled)

	body, err := os.ReadFile(filepath.Join(e.dir, "out", "part-00000-run5-c000.json"))
	require.NoError(t, err)
	inURI, err := objstore.Parse(input)
	require.NoError(t, err)
	assert.Equal(t,
		`{"municipio":"SAO PAULO","data_da_coleta":"2022-07-01","year":2022,"semestre":2,"input_file_name":"`+inURI.String()+`"}`+"\n"+
			`{"municipio":"SANTOS","data_da_coleta":"2022-07-02","valor_de_compra":5.1,"year":2022,"semestre":2,"input_file_name":"`+inURI.String()+`"}`+"\n",
		string(body))
}

func TestCompile_UnsupportedFormatFailsOnlyThatSink(t *testing.T) {
	e := newEnv(t)
	wh := &fakeWarehouse{}
	r, err := Compile(spec.Default(),
		Args{Input: e.input, Output: e.out, Format: "xlsx", Table: "ds.t"},
		Deps{Store: e.store, Warehouse: wh, StagingBucket: "staging", RunID: "run3"})
	require.NoError(t, err)

	rep := r.Run(t.Context())
	require.Len(t, rep.Sinks, 3)
	assert.NoError(t, rep.Sinks[0].Err)
	assert.ErrorIs(t, rep.Sinks[1].Err, sink.ErrUnsupportedFormat)
	assert.NoError(t, rep.Sinks[2].Err)
	assert.Len(t, wh.loads, 1)
	assert.False(t, rep.OK())
}

func TestCompile_Errors(t *testing.T) {
	e := newEnv(t)
	args := Args{Input: e.input, Output: e.out, Format: "csv", Table: "ds.t"}

	_, err := Compile(spec.Default(), args, Deps{})
	assert.ErrorContains(t, err, "no object store")

	_, err = Compile(spec.Default(), Args{Input: e.input, Output: e.out, Format: "csv", Table: "nodot"}, Deps{Store: e.store})
	assert.Error(t, err)

	_, err = Compile(spec.Default(), args, Deps{Store: e.store})
	assert.ErrorContains(t, err, "reference_schema")

	bad := spec.Default()
	bad.Stages = append(bad.Stages, spec.StageSpec{Kind: "explode"})
	_, err = Compile(bad, args, Deps{Store: e.store, Warehouse: &fakeWarehouse{}})
	assert.ErrorContains(t, err, `unknown stage kind "explode"`)

	bad = spec.Default()
	bad.Sinks = []string{"kafka"}
	_, err = Compile(bad, args, Deps{Store: e.store, Warehouse: &fakeWarehouse{}})
	assert.ErrorContains(t, err, `unknown sink "kafka"`)
}

func TestParseDelimiter(t *testing.T) {
	r, err := parseDelimiter("", ';')
	require.NoError(t, err)
	assert.Equal(t, ';', r)

	r, err = parseDelimiter("\t", ';')
	require.NoError(t, err)
	assert.Equal(t, '\t', r)

	_, err = parseDelimiter(";;", ';')
	assert.Error(t, err)
}
