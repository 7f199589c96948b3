package installer

import (
	"regexp"
	"sort"

	"github.com/cloudfoundry/jibber_jabber"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v2"
)

const DefaultLanguage = "en"

// Translator resolves message keys against the yaml string tables in the
// "languages" resource directory, picking the table that best matches the
// system locale.
type Translator struct {
	language    string
	langStrings map[string]StringMap
	variables   StringMap
}

// NewTranslator returns a Translator without any variable lookup.
func NewTranslator() *Translator {
	return NewTranslatorVar(StringMap{})
}

// NewTranslatorVar returns a Translator with a variable lookup. It scans for any yaml
// files inside the languages folder in the resources box. It never returns
// nil: with no usable string tables, every key resolves to the empty string.
func NewTranslatorVar(variables StringMap) *Translator {
	languageFiles, err := GetResourcesFiltered("languages", regexp.MustCompile(`\.ya?ml$`))
	if err != nil {
		logrus.Warnf("No language files: %s", err)
		languageFiles = map[string]string{}
	}
	languages := make(map[string]StringMap)
	for filename, content := range languageFiles {
		languageTag := regexp.MustCompile(`.*/([^/]+)\.ya?ml`).ReplaceAllString(filename, "$1")
		langStrings := make(StringMap)
		if err := yaml.Unmarshal([]byte(content), langStrings); err != nil {
			logrus.Warnf("Unable to parse language file %s", filename)
			continue
		}
		languages[languageTag] = langStrings
	}
	t := Translator{
		langStrings: languages,
		variables:   variables,
	}
	if err := t.SetLanguage(t.getLocale()); err != nil {
		if err := t.SetLanguage(DefaultLanguage); err != nil {
			t.language = DefaultLanguage
		}
	}
	return &t
}

// Get returns the localized string for a given string key, with variable
// templates expanded.
func (t *Translator) Get(key string) string {
	return ExpandVariables(t.getRaw(key, t.language), t.variables)
}

// GetLanguage returns the identifier (e.g. "en") for the current language.
func (t *Translator) GetLanguage() string { return t.language }

// GetLanguages returns a list of identifiers for all available languages. The default
// language (if it has strings available) will be the first in the list, the rest is
// sorted alphabetically.
func (t *Translator) GetLanguages() (languages []string) {
	hasDefault := false
	for lang := range t.langStrings {
		if lang != DefaultLanguage {
			languages = append(languages, lang)
		} else {
			hasDefault = true
		}
	}
	sort.Strings(languages)
	if hasDefault {
		languages = append([]string{DefaultLanguage}, languages...)
	}
	return languages
}

// SetLanguage given a language code string (e.g.: "en"), sets the translator's
// language.
func (t *Translator) SetLanguage(language string) error {
	if _, ok := t.langStrings[language]; !ok {
		return errors.Errorf("no language '%s'", language)
	}
	t.language = language
	return nil
}

// getLocale returns the current system locale as a language code string
// (e.g.: "en"), matched against the available string tables.
func (t *Translator) getLocale() string {
	languageTags := []language.Tag{language.Raw.Make(DefaultLanguage)}
	for languageTag := range t.langStrings {
		if languageTag != DefaultLanguage && languageTag != "" {
			languageTags = append(languageTags, language.Raw.Make(languageTag))
		}
	}
	locale, _ := jibber_jabber.DetectIETF()
	match, _, _ := language.NewMatcher(languageTags).Match(language.Make(locale))
	return match.String()
}

// getRaw returns a localized string for a given string key in a given language, without
// template expansion. If the language doesn't have strings available, then the default
// language is tried. If that fails as well, an empty string is returned.
func (t *Translator) getRaw(key, language string) string {
	if langStrings, ok := t.langStrings[language]; ok {
		if value, ok := langStrings[key]; ok {
			return value
		}
	}
	if langStrings, ok := t.langStrings[DefaultLanguage]; ok {
		if value, ok := langStrings[key]; ok {
			return value
		}
	}
	return ""
}
