package mcpserver

// ConfigFormat describes a book's config.json so LLM consumers can read
// the notes returned by get_book_notes.
const ConfigFormat = `# Lectern Book Config Format

Every book lives in a directory named by the md5 of its EPUB body. Its
reading state is the JSON document ` + "`" + `<hash>/config.json` + "`" + `.

## Structure

` + "```" + `json
{
  "ts": 1718000000000,
  "lastProgress": 0.41,
  "progress": 0.42,
  "notes": [
    {
      "cfi": "epubcfi(/6/4[chap01]!/4/2,/1:0,/1:24)",
      "start": "epubcfi(/6/4[chap01]!/4/2/1:0)",
      "end": "epubcfi(/6/4[chap01]!/4/2/1:24)",
      "page": 12,
      "text": "the highlighted passage",
      "annotation": "a note written on it",
      "modified": 1718000000000
    }
  ],
  "bookmarks": [],
  "removedTs": { "epubcfi(...)": 1718000000000 },
  "bookshelf": { "value": "Philosophy", "ts": 1718000000000 }
}
` + "```" + `

## Fields

1. **Timestamps** (` + "`" + `ts` + "`" + `, ` + "`" + `modified` + "`" + `, ` + "`" + `removed` + "`" + `) are Unix milliseconds.
2. **progress** is the reading position as a fraction of the book (0 to 1).
   ` + "`" + `lastProgress` + "`" + ` is the value seen at the last sync.
3. **notes** and **bookmarks** are sorted by ` + "`" + `start` + "`" + ` in reading order.
   ` + "`" + `cfi` + "`" + ` is an EPUB Canonical Fragment Identifier range; ` + "`" + `start` + "`" + ` and
   ` + "`" + `end` + "`" + ` are its two endpoints.
4. **page** is the 1-based page of ` + "`" + `start` + "`" + ` in the book's cached page locations,
   or 0 when none were generated.
5. A note with a non-zero ` + "`" + `removed` + "`" + ` timestamp is deleted. ` + "`" + `removedTs` + "`" + ` maps a
   deleted locator to its deletion time and keeps edits older than the deletion
   from coming back on another device.
6. **bookshelf.value** null (or absent bookshelf) is the default shelf.

## Tools

- ` + "`" + `get_book_notes` + "`" + ` returns only live notes.
- ` + "`" + `sync_book` + "`" + ` merges this document with the remote copy; it never loses a
  deletion and the newer edit of the same passage wins.
`
