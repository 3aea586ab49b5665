package normalize

import (
	"context"
	"errors"
	"testing"

	"github.com/jonathan/address-lookup/internal/llm"
	"github.com/jonathan/address-lookup/internal/llm/llmtest"
	"github.com/jonathan/address-lookup/internal/search"
	"github.com/jonathan/address-lookup/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawRecords() []types.AddressRecord {
	return []types.AddressRecord{
		{Company: "Acme Corp", Street: "1 Acme Way, Phoenix, AZ 85001, USA", SourceURL: "https://acme.example.com"},
		{Company: "Globex", Street: "9 Cypress Creek, Springfield, OR 97477, USA", SourceURL: "https://globex.example.com"},
	}
}

const goodResponse = "company_name,street_address,city,state,zip,country,source_url\n" +
	"Acme Corp,1 Acme Way,Phoenix,AZ,85001,USA,https://acme.example.com\n" +
	"Globex,9 Cypress Creek,Springfield,OR,97477,USA,https://globex.example.com\n"

func TestApply_Success(t *testing.T) {
	client := &llmtest.Client{Response: "```csv\n" + goodResponse + "```"}
	n := New(client, llm.TierLite, nil)

	out, err := n.Apply(context.Background(), rawRecords())
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, types.AddressRecord{
		Company: "Acme Corp", Street: "1 Acme Way", City: "Phoenix", State: "AZ",
		Zip: "85001", Country: "USA", SourceURL: "https://acme.example.com",
	}, out[0])
	assert.Equal(t, "Springfield", out[1].City)

	prompts := client.Prompts()
	require.Len(t, prompts, 1, "one call per batch")
	assert.Contains(t, prompts[0], "Company,Address,Source URL")
	assert.Contains(t, prompts[0], "Acme Corp,\"1 Acme Way, Phoenix, AZ 85001, USA\",https://acme.example.com")
	assert.Contains(t, prompts[0], "company_name,street_address,city,state,zip,country,source_url")
	assert.Contains(t, prompts[0], "There are 2 data rows")
	assert.Equal(t, []llm.ModelTier{llm.TierLite}, client.Tiers())
}

func TestApply_EmptyBatchSkipsCall(t *testing.T) {
	client := &llmtest.Client{Response: goodResponse}
	n := New(client, "", nil)

	out, err := n.Apply(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, client.Prompts())
}

func TestApply_GenerationError(t *testing.T) {
	client := &llmtest.Client{Err: errors.New("quota")}
	n := New(client, "", nil)

	_, err := n.Apply(context.Background(), rawRecords())
	require.Error(t, err)

	var genErr *GenerationError
	assert.True(t, errors.As(err, &genErr))
	assert.Contains(t, err.Error(), "quota")
}

func TestParseResponse_Rejections(t *testing.T) {
	header := "company_name,street_address,city,state,zip,country,source_url\n"
	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{name: "empty", text: "", reason: "empty response"},
		{name: "prose", text: "Sure! Here is your CSV:\n" + goodResponse, reason: "unexpected header"},
		{name: "wrong header", text: "Company,Address\nAcme Corp,x\nGlobex,y\n", reason: "unexpected header"},
		{name: "missing row", text: header + "Acme Corp,1 Acme Way,Phoenix,AZ,85001,USA,u\n", reason: "expected 2 rows, got 1"},
		{name: "extra row", text: goodResponse + "Initech,1 Way,Austin,TX,73301,USA,u\n", reason: "expected 2 rows, got 3"},
		{name: "short row", text: header + "Acme Corp,1 Acme Way,Phoenix\nGlobex,9 Cypress Creek,Springfield,OR,97477,USA,u\n", reason: "row 1: expected 7 fields, got 3"},
		{name: "reordered", text: header + "Globex,9 Cypress Creek,Springfield,OR,97477,USA,u\nAcme Corp,1 Acme Way,Phoenix,AZ,85001,USA,u\n", reason: "does not match"},
		{name: "bad quoting", text: header + "Acme Corp,\"1 Acme Way,Phoenix,AZ,85001,USA,u\n", reason: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse(tt.text, rawRecords())
			require.Error(t, err)

			var malformed *MalformedResponseError
			require.True(t, errors.As(err, &malformed), "got %T", err)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestParseResponse_ToleratesSmallCompanyRewrites(t *testing.T) {
	text := "Company_Name, street_address,city,state,zip,country,source_url\n" +
		"ACME Corp.,1 Acme Way,Phoenix,AZ,85001,USA,https://wrong.example.com\n" +
		"globex,9 Cypress Creek,Springfield,OR,97477,USA,\n"

	out, err := ParseResponse(text, rawRecords())
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", out[0].Company, "company comes from the input")
	assert.Equal(t, "https://acme.example.com", out[0].SourceURL, "source comes from the input")
	assert.Equal(t, "https://globex.example.com", out[1].SourceURL)
}

func TestParseResponse_KeepsPlaceholders(t *testing.T) {
	original := []types.AddressRecord{
		{Company: "Ghost LLC", Street: types.AddressNotFound},
		{Company: "Broken Inc", Street: search.MissingCredentialSentinel},
	}
	text := "company_name,street_address,city,state,zip,country,source_url\n" +
		"Ghost LLC,Somewhere,Invented City,,,,\n" +
		"Broken Inc,,,,,,\n"

	out, err := ParseResponse(text, original)
	require.NoError(t, err)
	assert.Equal(t, original, out)
}

func TestInputCSV(t *testing.T) {
	text, err := InputCSV([]types.AddressRecord{{Company: "Acme, Inc.", Street: "1 Way"}})
	require.NoError(t, err)
	assert.Equal(t, "Company,Address,Source URL\n\"Acme, Inc.\",1 Way,\n", text)
}

func TestParseResponse_RejectsSwappedShortNames(t *testing.T) {
	original := []types.AddressRecord{
		{Company: "GE", Street: "1 River Rd, Schenectady, NY 12345, USA"},
		{Company: "HP", Street: "1501 Page Mill Rd, Palo Alto, CA 94304, USA"},
	}
	text := "company_name,street_address,city,state,zip,country,source_url\n" +
		"HP,1501 Page Mill Rd,Palo Alto,CA,94304,USA,\n" +
		"GE,1 River Rd,Schenectady,NY,12345,USA,\n"

	_, err := ParseResponse(text, original)
	require.Error(t, err)

	var malformed *MalformedResponseError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, 1, malformed.Row)
	assert.Contains(t, err.Error(), "does not match")
}

func TestParseResponse_RejectsSwappedSimilarNames(t *testing.T) {
	original := []types.AddressRecord{
		{Company: "Acme Labs", Street: "1 Lab Way"},
		{Company: "Acme Lab", Street: "2 Lab Way"},
	}
	text := "company_name,street_address,city,state,zip,country,source_url\n" +
		"Acme Lab,2 Lab Way,,,,,\n" +
		"Acme Labs,1 Lab Way,,,,,\n"

	_, err := ParseResponse(text, original)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestParseResponse_AllowsDuplicateCompanies(t *testing.T) {
	original := []types.AddressRecord{
		{Company: "Initech", Street: "1 Way, Austin, TX"},
		{Company: "Initech", Street: "1 Way, Austin, TX"},
	}
	text := "company_name,street_address,city,state,zip,country,source_url\n" +
		"Initech,1 Way,Austin,TX,,USA,\n" +
		"Initeck,1 Way,Austin,TX,,USA,\n"

	out, err := ParseResponse(text, original)
	require.NoError(t, err)
	assert.Equal(t, "Austin", out[1].City)
}

func TestParseResponse_MatchesAcrossUnicodeForms(t *testing.T) {
	original := []types.AddressRecord{
		{Company: "Nestle\u0301", Street: "Avenue Nestle 55, Vevey"},
		{Company: "Nokia", Street: "Karakaari 7, Espoo"},
	}
	text := "company_name,street_address,city,state,zip,country,source_url\n" +
		"Nestl\u00e9,Avenue Nestle 55,Vevey,,1800,Switzerland,\n" +
		"Nokia,Karakaari 7,Espoo,,02610,Finland,\n"

	out, err := ParseResponse(text, original)
	require.NoError(t, err)
	assert.Equal(t, "Nestle\u0301", out[0].Company, "company keeps the typed bytes")
	assert.Equal(t, "Vevey", out[0].City)
}
