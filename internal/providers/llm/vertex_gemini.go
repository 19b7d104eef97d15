package llm

import (
	"context"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

type VertexGemini struct {
	client    *vertexgenai.Client
	modelName string
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &VertexGemini{client: c, modelName: modelName}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) Stream(ctx context.Context, system string, history []Turn, tools []ToolSchema) (<-chan Event, <-chan error) {
	out := make(chan Event, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		model := v.client.GenerativeModel(v.modelName)
		if system != "" {
			model.SystemInstruction = &vertexgenai.Content{
				Parts: []vertexgenai.Part{vertexgenai.Text(system)},
			}
		}
		if len(tools) > 0 {
			model.Tools = toVertexTools(tools)
		}

		contents := toContents(history)
		if len(contents) == 0 {
			return
		}

		cs := model.StartChat()
		cs.History = contents[:len(contents)-1]
		last := contents[len(contents)-1]

		it := cs.SendMessageStream(ctx, last.Parts...)
		for {
			resp, err := it.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				errs <- err
				return
			}

			for _, cand := range resp.Candidates {
				ev := Event{}
				if cand.Content != nil {
					for _, part := range cand.Content.Parts {
						switch p := part.(type) {
						case vertexgenai.Text:
							ev.Text += string(p)
						case vertexgenai.FunctionCall:
							ev.Calls = append(ev.Calls, FunctionCall{Name: p.Name, Args: p.Args})
						}
					}
				}
				if cand.FinishReason != vertexgenai.FinishReasonUnspecified {
					ev.FinishReason = cand.FinishReason.String()
				}
				if ev.Text != "" || len(ev.Calls) > 0 || ev.FinishReason != "" {
					out <- ev
				}
			}
		}
	}()

	return out, errs
}

func toContents(history []Turn) []*vertexgenai.Content {
	contents := make([]*vertexgenai.Content, 0, len(history))
	for _, t := range history {
		c := &vertexgenai.Content{Role: string(t.Role)}
		if t.Text != "" {
			c.Parts = append(c.Parts, vertexgenai.Text(t.Text))
		}
		for _, fc := range t.Calls {
			c.Parts = append(c.Parts, vertexgenai.FunctionCall{Name: fc.Name, Args: fc.Args})
		}
		for _, fr := range t.Responses {
			c.Parts = append(c.Parts, vertexgenai.FunctionResponse{Name: fr.Name, Response: fr.Response})
		}
		if len(c.Parts) == 0 {
			continue
		}
		contents = append(contents, c)
	}
	return contents
}

func toVertexTools(tools []ToolSchema) []*vertexgenai.Tool {
	decls := make([]*vertexgenai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		props := make(map[string]*vertexgenai.Schema, len(t.Properties))
		for name, p := range t.Properties {
			props[name] = toVertexSchema(p)
		}
		decls = append(decls, &vertexgenai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters: &vertexgenai.Schema{
				Type:       vertexgenai.TypeObject,
				Properties: props,
				Required:   t.Required,
			},
		})
	}
	return []*vertexgenai.Tool{{FunctionDeclarations: decls}}
}

func toVertexSchema(p Property) *vertexgenai.Schema {
	s := &vertexgenai.Schema{Description: p.Description, Enum: p.Enum}
	switch p.Type {
	case "number":
		s.Type = vertexgenai.TypeNumber
	case "integer":
		s.Type = vertexgenai.TypeInteger
	case "boolean":
		s.Type = vertexgenai.TypeBoolean
	case "array":
		s.Type = vertexgenai.TypeArray
		if p.Items != nil {
			s.Items = toVertexSchema(*p.Items)
		}
	default:
		s.Type = vertexgenai.TypeString
	}
	return s
}
