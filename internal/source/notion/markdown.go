package notion

import (
	"fmt"
	"strings"
	"unicode"
)

// RenderMarkdown flattens a block tree into markdown. Unsupported block types
// (child pages, databases, synced block references) are dropped.
func RenderMarkdown(blocks []Block) string {
	r := &renderer{}
	r.blocks(blocks, "")
	out := strings.TrimSpace(r.sb.String())
	if out == "" {
		return ""
	}
	return out + "\n"
}

type renderer struct {
	sb       strings.Builder
	lastList bool
}

func (r *renderer) blocks(blocks []Block, indent string) {
	number := 0
	for _, b := range blocks {
		if b.Type == "numbered_list_item" {
			number++
		} else {
			number = 0
		}
		r.block(b, indent, number)
	}
}

// write appends one rendered block. Consecutive list items are separated by a
// single newline, everything else by a blank line.
func (r *renderer) write(text string, list bool) {
	if text == "" {
		return
	}
	if r.sb.Len() > 0 {
		if list && r.lastList {
			r.sb.WriteString("\n")
		} else {
			r.sb.WriteString("\n\n")
		}
	}
	r.sb.WriteString(text)
	r.lastList = list
}

func (r *renderer) block(b Block, indent string, number int) {
	switch b.Type {
	case "paragraph":
		if b.Paragraph != nil {
			r.write(indentLines(RenderRichText(b.Paragraph.RichText), indent), indent != "")
		}
		r.blocks(b.Children, indent)
	case "heading_1", "heading_2", "heading_3":
		level := int(b.Type[len(b.Type)-1] - '0')
		if tb := heading(b); tb != nil {
			if text := singleLine(RenderRichText(tb.RichText)); text != "" {
				r.write(strings.Repeat("#", level)+" "+text, false)
			}
		}
		r.blocks(b.Children, indent)
	case "bulleted_list_item":
		if b.BulletedListItem != nil {
			r.listItem(indent, "- ", RenderRichText(b.BulletedListItem.RichText))
		}
		r.blocks(b.Children, indent+"  ")
	case "numbered_list_item":
		if b.NumberedListItem != nil {
			r.listItem(indent, fmt.Sprintf("%d. ", number), RenderRichText(b.NumberedListItem.RichText))
		}
		r.blocks(b.Children, indent+"   ")
	case "to_do":
		if b.ToDo != nil {
			marker := "- [ ] "
			if b.ToDo.Checked {
				marker = "- [x] "
			}
			r.listItem(indent, marker, RenderRichText(b.ToDo.RichText))
		}
		r.blocks(b.Children, indent+"  ")
	case "toggle":
		if b.Toggle != nil {
			r.write(indentLines(RenderRichText(b.Toggle.RichText), indent), indent != "")
		}
		r.blocks(b.Children, indent)
	case "quote":
		if b.Quote != nil {
			r.write(quoteLines(RenderRichText(b.Quote.RichText), indent), false)
		}
		r.quotedChildren(b.Children, indent)
	case "callout":
		if b.Callout != nil {
			text := RenderRichText(b.Callout.RichText)
			if b.Callout.Icon != nil && b.Callout.Icon.Emoji != "" {
				text = b.Callout.Icon.Emoji + " " + text
			}
			r.write(quoteLines(text, indent), false)
		}
		r.quotedChildren(b.Children, indent)
	case "code":
		if b.Code != nil {
			lang := b.Code.Language
			if lang == "plain text" {
				lang = ""
			}
			code := "```" + lang + "\n" + PlainText(b.Code.RichText) + "\n```"
			r.write(indentLines(code, indent), false)
		}
	case "equation":
		if b.Equation != nil {
			r.write(indentLines("$$\n"+b.Equation.Expression+"\n$$", indent), false)
		}
	case "divider":
		r.write(indent+"---", false)
	case "image":
		if u := b.Image.URL(); u != "" {
			r.write(indent+fmt.Sprintf("![%s](%s)", linkLabel(PlainText(b.Image.Caption)), u), false)
		}
	case "video", "file":
		f := b.Video
		if b.Type == "file" {
			f = b.File
		}
		if u := f.URL(); u != "" {
			label := linkLabel(PlainText(f.Caption))
			if label == "" {
				label = u
			}
			r.write(indent+fmt.Sprintf("[%s](%s)", label, u), false)
		}
	case "bookmark", "embed", "link_preview":
		if link := linkBlock(b); link != nil && link.URL != "" {
			label := linkLabel(PlainText(link.Caption))
			if label == "" {
				label = link.URL
			}
			r.write(indent+fmt.Sprintf("[%s](%s)", label, link.URL), false)
		}
	case "table":
		r.write(indentLines(renderTable(b.Children), indent), false)
	case "column_list", "column", "synced_block":
		r.blocks(b.Children, indent)
	}
}

func (r *renderer) listItem(indent, marker, text string) {
	cont := indent + strings.Repeat(" ", len(marker))
	lines := strings.Split(text, "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = cont + lines[i]
	}
	r.write(indent+marker+strings.Join(lines, "\n"), true)
}

func (r *renderer) quotedChildren(children []Block, indent string) {
	if len(children) == 0 {
		return
	}
	inner := RenderMarkdown(children)
	r.write(quoteLines(strings.TrimSpace(inner), indent), false)
}

func heading(b Block) *TextBlock {
	switch b.Type {
	case "heading_1":
		return b.Heading1
	case "heading_2":
		return b.Heading2
	default:
		return b.Heading3
	}
}

func linkBlock(b Block) *LinkBlock {
	switch b.Type {
	case "bookmark":
		return b.Bookmark
	case "embed":
		return b.Embed
	default:
		return b.LinkPreview
	}
}

func renderTable(rows []Block) string {
	var lines []string
	for i, row := range rows {
		if row.TableRow == nil {
			continue
		}
		cells := make([]string, len(row.TableRow.Cells))
		for j, cell := range row.TableRow.Cells {
			cells[j] = strings.ReplaceAll(singleLine(RenderRichText(cell)), "|", `\|`)
		}
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
		if i == 0 {
			sep := make([]string, len(cells))
			for j := range sep {
				sep[j] = "---"
			}
			lines = append(lines, "| "+strings.Join(sep, " | ")+" |")
		}
	}
	return strings.Join(lines, "\n")
}

// RenderRichText renders annotated rich text as inline markdown. Annotation
// markers hug the text; surrounding whitespace is kept outside of them.
func RenderRichText(parts []RichText) string {
	var sb strings.Builder
	for _, part := range parts {
		if part.Type == "equation" && part.Equation != nil {
			sb.WriteString("$" + part.Equation.Expression + "$")
			continue
		}

		lead, core, trail := splitSpace(part.PlainText)
		if core == "" {
			sb.WriteString(part.PlainText)
			continue
		}

		a := part.Annotations
		if a.Code {
			core = "`" + core + "`"
		}
		if a.Bold {
			core = "**" + core + "**"
		}
		if a.Italic {
			core = "*" + core + "*"
		}
		if a.Strikethrough {
			core = "~~" + core + "~~"
		}
		if part.Href != nil && *part.Href != "" {
			core = "[" + core + "](" + *part.Href + ")"
		}
		sb.WriteString(lead + core + trail)
	}
	return sb.String()
}

func splitSpace(s string) (lead, core, trail string) {
	core = strings.TrimLeftFunc(s, unicode.IsSpace)
	lead = s[:len(s)-len(core)]
	trimmed := strings.TrimRightFunc(core, unicode.IsSpace)
	trail = core[len(trimmed):]
	return lead, trimmed, trail
}

func indentLines(text, indent string) string {
	if indent == "" || text == "" {
		return text
	}
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = indent + lines[i]
	}
	return strings.Join(lines, "\n")
}

func quoteLines(text, indent string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(indent+"> "+lines[i], " ")
	}
	return strings.Join(lines, "\n")
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func linkLabel(s string) string {
	s = singleLine(s)
	return strings.NewReplacer("[", "(", "]", ")").Replace(s)
}
