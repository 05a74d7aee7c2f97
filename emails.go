package main

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	operatorTemplateKey     = "contact-operator"
	confirmationTemplateKey = "contact-confirmation"
)

// escapeHTML neutralizes user text destined for raw HTML bodies. Matches the
// entity set the site has always used, including the forward slash.
var htmlEntityReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&#39;",
	`"`, "&quot;",
	"/", "&#x2F;",
)

func escapeHTML(s string) string {
	return htmlEntityReplacer.Replace(s)
}

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// fillTemplate substitutes {{fieldName}} placeholders. Unknown placeholders
// collapse to the empty string.
func fillTemplate(body string, fields map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		key := match[2 : len(match)-2]
		return fields[key]
	})
}

// builtinEmailTemplates are the static fallbacks used when the CMS holds no
// template for the requested key in any language.
var builtinEmailTemplates = map[string]map[string]EmailTemplate{
	operatorTemplateKey: {
		defaultLanguage: {
			Key:      operatorTemplateKey,
			Language: defaultLanguage,
			Subject:  "Spreetzit - Richiesta di contatto",
			Body: `<div><h1>Nuova richiesta di contatto</h1>` +
				`<p><strong>Nome:</strong> {{name}}</p>` +
				`<p><strong>Cognome:</strong> {{surname}}</p>` +
				`<p><strong>Email:</strong> {{email}}</p>` +
				`<p><strong>Azienda:</strong> {{organization}}</p>` +
				`<p><strong>Oggetto della richiesta:</strong> {{subject}}</p>` +
				`<p><strong>Descrizione:</strong></p>{{description}}</div>`,
			Text: "Nome: {{name}}\nCognome: {{surname}}\nEmail: {{email}}\nAzienda: {{organization}}\nOggetto della richiesta: {{subject}}\nDescrizione:\n{{descriptionText}}",
		},
	},
	confirmationTemplateKey: {
		defaultLanguage: {
			Key:      confirmationTemplateKey,
			Language: defaultLanguage,
			Subject:  "Riepilogo richiesta di contatto - Spreetzit",
			Body: `<div><h1>Spreetzit</h1><div><p>Gentile {{name}} {{surname}}, <br>` +
				`Grazie per averci contattato. Di seguito il riepilogo della tua richiesta: <br><br>` +
				`<strong>Oggetto:</strong> {{subject}} <br><strong>Messaggio:</strong></p>{{description}}` +
				`<p>Ti contatteremo al più presto. <br><br>Cordiali saluti, <br><br>Il Team di Spreetzit</p></div></div>`,
			Text: "Gentile {{name}} {{surname}},\n\nGrazie per averci contattato. Di seguito il riepilogo della tua richiesta:\n\nOggetto: {{subject}}\nMessaggio:\n{{descriptionText}}\n\nTi contatteremo al più presto.\n\nCordiali saluti,\nIl Team di Spreetzit",
		},
		englishLanguage: {
			Key:      confirmationTemplateKey,
			Language: englishLanguage,
			Subject:  "Contact request summary - Spreetzit",
			Body: `<div><h1>Spreetzit</h1><div><p>Dear {{name}} {{surname}}, <br>` +
				`Thank you for contacting us. Below is a summary of your request: <br><br>` +
				`<strong>Subject:</strong> {{subject}} <br><strong>Message:</strong></p>{{description}}` +
				`<p>We will get back to you as soon as possible. <br><br>Best regards, <br><br>The Spreetzit Team</p></div></div>`,
			Text: "Dear {{name}} {{surname}},\n\nThank you for contacting us. Below is a summary of your request:\n\nSubject: {{subject}}\nMessage:\n{{descriptionText}}\n\nWe will get back to you as soon as possible.\n\nBest regards,\nThe Spreetzit Team",
		},
	},
}

func builtinEmailTemplate(key, language string) EmailTemplate {
	templates := builtinEmailTemplates[key]
	if tmpl, ok := templates[language]; ok {
		return tmpl
	}
	return templates[defaultLanguage]
}

// resolveEmailTemplate looks up a CMS template by requested language, falls
// back to the default language, and finally to the built-in static template.
// A CMS outage must not block a form submission, so fetch failures degrade to
// the built-ins.
func (a *App) resolveEmailTemplate(c *gin.Context, key, language string) EmailTemplate {
	languages := []string{language}
	if language != defaultLanguage {
		languages = append(languages, defaultLanguage)
	}
	for _, lang := range languages {
		tmpl, err := a.fetchEmailTemplate(c, key, lang)
		if err != nil {
			a.log.Warn("email template fetch failed, using built-in", "key", key, "language", lang, "err", err)
			break
		}
		if tmpl != nil && tmpl.Body != "" {
			return *tmpl
		}
	}
	return builtinEmailTemplate(key, language)
}

// contactTemplateFields escapes every user field for HTML use; the free-form
// description goes through the markdown renderer, whose output encoding makes
// it safe unescaped. descriptionText carries the raw text for plain bodies.
func contactTemplateFields(sub ContactSubmission) (map[string]string, error) {
	descriptionHTML, err := renderMarkdown(sub.Description)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"name":            escapeHTML(sub.Name),
		"surname":         escapeHTML(sub.Surname),
		"email":           escapeHTML(sub.Email),
		"organization":    escapeHTML(sub.Organization),
		"subject":         escapeHTML(sub.Subject),
		"description":     string(descriptionHTML),
		"descriptionText": sub.Description,
	}, nil
}
