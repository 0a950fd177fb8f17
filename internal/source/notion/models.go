package notion

import "encoding/json"

// QueryRequest is the body of POST /databases/{id}/query.
type QueryRequest struct {
	Sorts       []Sort `json:"sorts,omitempty"`
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
}

type Sort struct {
	Timestamp string `json:"timestamp,omitempty"`
	Property  string `json:"property,omitempty"`
	Direction string `json:"direction"`
}

// QueryResponse is one page of database results.
type QueryResponse struct {
	Results    []Page  `json:"results"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

type Page struct {
	ID             string              `json:"id"`
	URL            string              `json:"url"`
	CreatedTime    string              `json:"created_time"`
	LastEditedTime string              `json:"last_edited_time"`
	Archived       bool                `json:"archived"`
	InTrash        bool                `json:"in_trash"`
	Properties     map[string]Property `json:"properties"`
}

// Property is a page property. Only the variants the adapter reads are modelled.
type Property struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Title       []RichText      `json:"title,omitempty"`
	RichText    []RichText      `json:"rich_text,omitempty"`
	Date        *DateValue      `json:"date,omitempty"`
	MultiSelect []SelectOption  `json:"multi_select,omitempty"`
	Select      *SelectOption   `json:"select,omitempty"`
	People      []Person        `json:"people,omitempty"`
	Formula     json.RawMessage `json:"formula,omitempty"`
}

type DateValue struct {
	Start string  `json:"start"`
	End   *string `json:"end"`
}

type SelectOption struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type Person struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RichText struct {
	Type        string      `json:"type"`
	PlainText   string      `json:"plain_text"`
	Href        *string     `json:"href"`
	Annotations Annotations `json:"annotations"`
	Equation    *Equation   `json:"equation,omitempty"`
}

type Annotations struct {
	Bold          bool   `json:"bold"`
	Italic        bool   `json:"italic"`
	Strikethrough bool   `json:"strikethrough"`
	Underline     bool   `json:"underline"`
	Code          bool   `json:"code"`
	Color         string `json:"color"`
}

type Equation struct {
	Expression string `json:"expression"`
}

// BlockChildrenResponse is one page of GET /blocks/{id}/children.
type BlockChildrenResponse struct {
	Results    []Block `json:"results"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

// Block is a node of a page's content tree. Children are filled in by FetchBlocks.
type Block struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	HasChildren bool   `json:"has_children"`

	Paragraph        *TextBlock     `json:"paragraph,omitempty"`
	Heading1         *TextBlock     `json:"heading_1,omitempty"`
	Heading2         *TextBlock     `json:"heading_2,omitempty"`
	Heading3         *TextBlock     `json:"heading_3,omitempty"`
	BulletedListItem *TextBlock     `json:"bulleted_list_item,omitempty"`
	NumberedListItem *TextBlock     `json:"numbered_list_item,omitempty"`
	ToDo             *ToDoBlock     `json:"to_do,omitempty"`
	Toggle           *TextBlock     `json:"toggle,omitempty"`
	Quote            *TextBlock     `json:"quote,omitempty"`
	Callout          *CalloutBlock  `json:"callout,omitempty"`
	Code             *CodeBlock     `json:"code,omitempty"`
	Equation         *Equation      `json:"equation,omitempty"`
	Image            *FileBlock     `json:"image,omitempty"`
	Bookmark         *LinkBlock     `json:"bookmark,omitempty"`
	Embed            *LinkBlock     `json:"embed,omitempty"`
	Video            *FileBlock     `json:"video,omitempty"`
	File             *FileBlock     `json:"file,omitempty"`
	LinkPreview      *LinkBlock     `json:"link_preview,omitempty"`
	ChildPage        *ChildPage     `json:"child_page,omitempty"`
	TableRow         *TableRowBlock `json:"table_row,omitempty"`

	Children []Block `json:"-"`
}

type TextBlock struct {
	RichText []RichText `json:"rich_text"`
}

type ToDoBlock struct {
	RichText []RichText `json:"rich_text"`
	Checked  bool       `json:"checked"`
}

type CalloutBlock struct {
	RichText []RichText `json:"rich_text"`
	Icon     *Icon      `json:"icon"`
}

type Icon struct {
	Type  string `json:"type"`
	Emoji string `json:"emoji"`
}

type CodeBlock struct {
	RichText []RichText `json:"rich_text"`
	Language string     `json:"language"`
	Caption  []RichText `json:"caption"`
}

type FileBlock struct {
	Type     string      `json:"type"`
	File     *FileObject `json:"file,omitempty"`
	External *FileObject `json:"external,omitempty"`
	Caption  []RichText  `json:"caption"`
}

// URL returns the hosted or external URL of the file.
func (f *FileBlock) URL() string {
	if f == nil {
		return ""
	}
	if f.File != nil && f.File.URL != "" {
		return f.File.URL
	}
	if f.External != nil {
		return f.External.URL
	}
	return ""
}

type FileObject struct {
	URL        string `json:"url"`
	ExpiryTime string `json:"expiry_time,omitempty"`
}

type LinkBlock struct {
	URL     string     `json:"url"`
	Caption []RichText `json:"caption"`
}

type ChildPage struct {
	Title string `json:"title"`
}

type TableRowBlock struct {
	Cells [][]RichText `json:"cells"`
}

// ErrorResponse is the body Notion returns for non-2xx responses.
type ErrorResponse struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
