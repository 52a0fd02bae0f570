package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		message string
		want    Intent
	}{
		{message: "show me all my folders", want: Intent{Kind: IntentListFolders}},
		{message: "List folders", want: Intent{Kind: IntentListFolders}},
		{message: "what folders do I have?", want: Intent{Kind: IntentListFolders}},
		{message: "show all assets", want: Intent{Kind: IntentListAssets}},
		{message: "I want to see all assets", want: Intent{Kind: IntentListAssets}},
		{message: `find assets "sunset"`, want: Intent{Kind: IntentSearchAssets, Query: "sunset"}},
		{message: "assets where name contains beach", want: Intent{Kind: IntentSearchAssets, Query: "beach"}},
		{message: "Create folder called Marketing", want: Intent{Kind: IntentCreateFolder, FolderName: "Marketing"}},
		{message: "please make a folder named 'Q3 Reports'", want: Intent{Kind: IntentCreateFolder, FolderName: "Q3 Reports"}},
		{message: "upload this file to Marketing", want: Intent{Kind: IntentNone}},
		{message: "hello there", want: Intent{Kind: IntentNone}},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.message))
		})
	}
}

func TestClassify_AssetsBeforeFolders(t *testing.T) {
	got := Classify("list all assets and all folders")
	assert.Equal(t, IntentListAssets, got.Kind)
}

func TestExtractFolderName(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{message: `create a new folder called "Client Work"`, want: "Client Work"},
		{message: "create folder 'Invoices 2024'", want: "Invoices 2024"},
		{message: `folder named "Travel"`, want: "Travel"},
		{message: "create a folder Design", want: "Design"},
		{message: "new folder Archive", want: "Archive"},
		{message: "add a new folder Photos", want: "Photos"},
		{message: "i want to create a folder called Brand Assets", want: "Brand"},
		{message: "add folder", want: ""},
		{message: "what's the weather", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFolderName(tt.message))
		})
	}
}

func TestExtractFolderName_StripsTrailingWords(t *testing.T) {
	assert.Equal(t, "Brand Kit", ExtractFolderName(`create folder "Brand Kit for me"`))
	assert.Equal(t, "Drafts", ExtractFolderName(`make a folder called 'Drafts folder'`))
}

func TestExtractAssetQuery(t *testing.T) {
	assert.Equal(t, "logo", ExtractAssetQuery(`search for "logo"`))
	assert.Equal(t, "", ExtractAssetQuery("search for logos"))
}
