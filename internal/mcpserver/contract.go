package mcpserver

// NoteFormatContract describes how note bodies are stored and split into
// searchable chunks, for LLM consumers writing notes.
const NoteFormatContract = `# Note Format Contract

A note is a title plus a plain text body. The body is stored verbatim in
` + "`" + `notes/<title>.txt` + "`" + ` inside the workspace.

## Titles

1. A title is the note's key. Saving under an existing title replaces it.
2. Titles must not contain ` + "`" + `/` + "`" + `, ` + "`" + `\` + "`" + ` or NUL and must not be ` + "`" + `.` + "`" + ` or ` + "`" + `..` + "`" + `.

## How bodies are chunked

Search works on chunks, so the way a body is written decides what a
search result points at.

1. A line starting with ` + "`" + `-` + "`" + ` is a bullet. Its text is one block.
2. A line starting with a number (` + "`" + `1.` + "`" + `, ` + "`" + `2)` + "`" + `, ` + "`" + `3 ` + "`" + `) is a list item. Its text
   after the marker is one block.
3. Consecutive other lines form one block; line breaks inside it do not end
   a sentence.
4. Every block is split into sentences. Each sentence is one chunk.

## Tags

- Every note gets one automatic tag from the topic classifier when its body
  changes.
- Manual tags are set with ` + "`" + `set_tags` + "`" + `. They survive later saves and
  replace nothing but the previous manual tags.
- Tag names are case-sensitive; surrounding whitespace is trimmed.

## Example

` + "```" + `text
Shopping list for the weekend.
- apples
- bread. Also butter.
1. call the bakery
` + "```" + `

This body yields the chunks "Shopping list for the weekend.", "apples",
"bread. ", "Also butter." and "call the bakery".
`
