package chat

import (
	"regexp"
	"strings"
)

// IntentKind is what a chat message asks for.
type IntentKind int

// IntentKind values, in the order they are checked.
const (
	IntentNone IntentKind = iota
	IntentListAssets
	IntentSearchAssets
	IntentListFolders
	IntentCreateFolder
)

// Intent is the classification of a chat message.
type Intent struct {
	Kind       IntentKind
	Query      string
	FolderName string
}

var assetListPhrases = []string{
	"list of assets",
	"show assets",
	"get assets",
	"all assets",
	"list assets",
	"show all assets",
	"what assets",
	"see all assets",
	"all my assets",
}

var folderListPhrases = []string{
	"list of folders",
	"show folders",
	"get folders",
	"all folders",
	"list folders",
	"show all folders",
	"what folders",
	"folders in the system",
	"all my folders",
	"my folders",
}

var folderCreatePhrases = []string{
	"create folder",
	"new folder",
	"make folder",
	"add folder",
	"create a folder",
	"make a folder",
	"add a folder",
}

var (
	folderCreatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)create.*folder`),
		regexp.MustCompile(`(?i)folder\s+(?:called|named)`),
	}

	assetQueryPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)assets?\s+(?:with\s+)?(?:name\s+)?(?:contains?\s+)?["']([^"']+)["']`),
		regexp.MustCompile(`(?i)assets?\s+(?:named?\s+)?(?:called\s+)?["']([^"']+)["']`),
		regexp.MustCompile(`(?i)search\s+(?:for\s+)?(?:assets?\s+)?["']([^"']+)["']`),
		regexp.MustCompile(`(?i)find\s+(?:assets?\s+)?["']([^"']+)["']`),
		regexp.MustCompile(`(?i)name\s+contains?\s+(\S+)`),
	}

	folderNamePatterns = []*regexp.Regexp{
		// quoted
		regexp.MustCompile(`(?i)create\s+(?:a\s+)?(?:new\s+)?folder\s+(?:called\s+|named\s+)?["']([^"']+)["']`),
		regexp.MustCompile(`(?i)new\s+folder\s+(?:called\s+|named\s+)?["']([^"']+)["']`),
		regexp.MustCompile(`(?i)make\s+(?:a\s+)?folder\s+(?:called\s+|named\s+)?["']([^"']+)["']`),
		regexp.MustCompile(`(?i)add\s+(?:a\s+)?(?:new\s+)?folder\s+(?:called\s+|named\s+)?["']([^"']+)["']`),
		regexp.MustCompile(`(?i)folder\s+(?:called\s+|named\s+)?["']([^"']+)["']`),
		// unquoted
		regexp.MustCompile(`(?i)create\s+(?:a\s+)?(?:new\s+)?folder\s+(?:called\s+|named\s+)?([\w\s-]+?)(?:\s|$)`),
		regexp.MustCompile(`(?i)new\s+folder\s+(?:called\s+|named\s+)?([\w\s-]+?)(?:\s|$)`),
		regexp.MustCompile(`(?i)make\s+(?:a\s+)?folder\s+(?:called\s+|named\s+)?([\w\s-]+?)(?:\s|$)`),
		regexp.MustCompile(`(?i)add\s+(?:a\s+)?(?:new\s+)?folder\s+(?:called\s+|named\s+)?([\w\s-]+?)(?:\s|$)`),
		// natural language
		regexp.MustCompile(`(?i)(?:please\s+)?(?:can\s+you\s+)?create\s+(?:a\s+)?folder\s+(?:for\s+)?([\w\s-]+?)(?:\s+please)?$`),
		regexp.MustCompile(`(?i)i\s+(?:want\s+to\s+|need\s+to\s+)?create\s+(?:a\s+)?folder\s+(?:called\s+)?([\w\s-]+)`),
		regexp.MustCompile(`(?i)add\s+(?:a\s+)?(?:new\s+)?folder\s+([\w\s-]+)`),
	}

	trailingWords = regexp.MustCompile(`(?i)\s+(please|folder|to\s+it|for\s+me)$`)
)

// Classify decides how a message is handled: asset list or search first,
// then folder list, then folder creation.
func Classify(message string) Intent {
	lower := strings.ToLower(message)

	if q := ExtractAssetQuery(message); q != "" {
		return Intent{Kind: IntentSearchAssets, Query: q}
	}
	if containsAny(lower, assetListPhrases) {
		return Intent{Kind: IntentListAssets}
	}
	if containsAny(lower, folderListPhrases) && !isFolderCreation(message, lower) {
		return Intent{Kind: IntentListFolders}
	}
	if isFolderCreation(message, lower) {
		return Intent{Kind: IntentCreateFolder, FolderName: ExtractFolderName(message)}
	}
	return Intent{Kind: IntentNone}
}

func isFolderCreation(message, lower string) bool {
	if containsAny(lower, folderCreatePhrases) {
		return true
	}
	for _, re := range folderCreatePatterns {
		if re.MatchString(message) {
			return true
		}
	}
	return false
}

// ExtractAssetQuery returns a quoted or "name contains" search term, or "".
func ExtractAssetQuery(message string) string {
	for _, re := range assetQueryPatterns {
		if m := re.FindStringSubmatch(message); len(m) > 1 {
			if q := strings.TrimSpace(m[1]); q != "" {
				return q
			}
		}
	}
	return ""
}

// ExtractFolderName pulls a folder name out of a creation request, trying
// quoted forms first, then unquoted, then looser phrasing. A trailing
// "please", "folder", "to it" or "for me" is dropped.
func ExtractFolderName(message string) string {
	message = strings.TrimSpace(message)
	for _, re := range folderNamePatterns {
		m := re.FindStringSubmatch(message)
		if len(m) < 2 {
			continue
		}
		name := strings.TrimSpace(m[1])
		name = strings.TrimSpace(trailingWords.ReplaceAllString(name, ""))
		if name != "" {
			return name
		}
	}
	return ""
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
