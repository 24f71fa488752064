// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianCare/datatypes"
	"github.com/AleutianAI/AleutianCare/evidence"
	"github.com/AleutianAI/AleutianCare/llm"
)

// synthesisSystemPrompt grounds the model in the evidence block. Answers
// are produced in the pivot language; translation back to the user's
// language happens afterwards.
const synthesisSystemPrompt = `Du är en medicinsk informationsassistent. Svara på hälsofrågor ENDAST utifrån de numrerade källorna nedan.

Regler:
- Använd ENBART informationen i källorna. Hitta ALDRIG på fakta eller källor.
- Hänvisa till källor med nummer i hakparentes, t.ex. [1] eller [2].
- Om källorna inte räcker för att besvara frågan, säg det tydligt.
- Rekommendera kontakt med vården (1177) vid allvarliga eller akuta symtom.
- Påminn om att informationen är allmän och inte ersätter en läkarbedömning.
- Svara på svenska, kort och sakligt.`

// citationPattern matches [n] source references in a synthesized answer.
var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// synthesize generates a grounded answer in the pivot language.
//
// The conversation history rides along as prior chat messages so
// follow-up questions resolve against earlier turns. Returns the answer
// text and the cited source URLs, which are a subset of the bundle's URLs
// by construction: citations are [n] indexes into the bundle and anything
// out of range is ignored.
func synthesize(ctx context.Context, client llm.Client, question string, bundle *evidence.Bundle, history []datatypes.Turn) (string, []string, error) {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{
		Role:    "system",
		Content: synthesisSystemPrompt + "\n\nKällor:\n" + bundle.Render(),
	})
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: datatypes.RoleUser, Content: question})

	var temp float32 = 0.2
	answer, err := client.Chat(ctx, messages, llm.GenerationParams{Temperature: &temp})
	if err != nil {
		return "", nil, &SynthesisError{Err: err}
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", nil, &SynthesisError{Err: fmt.Errorf("empty completion")}
	}

	return answer, extractCited(answer, bundle), nil
}

// extractCited resolves [n] markers against the bundle, in bundle order
// without duplicates. Markers outside the bundle's range are dropped.
// When the answer carries no markers at all, every bundle URL is reported
// as used; the whole bundle was in the prompt.
func extractCited(answer string, bundle *evidence.Bundle) []string {
	matches := citationPattern.FindAllStringSubmatch(answer, -1)
	if len(matches) == 0 {
		return bundle.URLs()
	}

	cited := make(map[int]struct{}, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(bundle.Sources) {
			continue
		}
		cited[n-1] = struct{}{}
	}
	if len(cited) == 0 {
		return bundle.URLs()
	}

	urls := make([]string, 0, len(cited))
	for i, s := range bundle.Sources {
		if _, ok := cited[i]; ok {
			urls = append(urls, s.URL)
		}
	}
	return urls
}
