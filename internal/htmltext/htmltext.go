// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package htmltext converts HTML email bodies into plain text suitable for
// content matching and for the text body of ERP activities.
package htmltext

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// runs of horizontal whitespace
	spaceRun = regexp.MustCompile(`[^\S\n]+`)
	// zero-width and other invisible code points Outlook likes to sprinkle around
	invisible = regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00AD}\x{034F}\x{061C}\x{180E}\x{2060}-\x{2064}]+`)
	// any tag, used only when goquery cannot parse the input
	anyTag = regexp.MustCompile(`<[^>]*>`)
)

const blockElements = "p, div, br, h1, h2, h3, h4, h5, h6, li, tr, table, blockquote"

// Parse converts HTML to plain text with one line per block element.
func Parse(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, head, title, meta, link").Remove()
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.BeforeHtml("\n")
	})

	return tidy(doc.Text()), nil
}

// Extract is Parse without the error: unparsable input has its tags
// stripped instead.
func Extract(html string) string {
	text, err := Parse(html)
	if err != nil {
		return tidy(anyTag.ReplaceAllString(html, " "))
	}
	return text
}

func tidy(text string) string {
	text = invisible.ReplaceAllString(text, "")
	text = spaceRun.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
