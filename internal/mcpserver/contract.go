package mcpserver

// FormatContract describes the zortex outline format so that LLM consumers
// can read outlines back into lines and write documents that parse the way
// they expect.
const FormatContract = `# Zortex Outline Format

A zortex document is a UTF-8 text file ending in ` + "`" + `.zortex` + "`" + `. Lines are
numbered from 1. Every line is classified on its own; the outline is the
tree those classifications imply.

## Line types

| Line                         | Type           | Notes                                      |
|------------------------------|----------------|--------------------------------------------|
| ` + "`" + `@@Title` + "`" + `                    | article        | Document title; only near the top counts.  |
| ` + "`" + `@tag` + "`" + `                       | tag            | Metadata tag; several may follow the title.|
| ` + "`" + `# Heading` + "`" + ` .. ` + "`" + `###### Heading` + "`" + `  | heading        | Level is the number of ` + "`" + `#` + "`" + ` characters.   |
| ` + "`" + `**Bold heading**` + "`" + `           | bold_heading   | Nests below headings, above labels.        |
| ` + "`" + `Label:` + "`" + `                     | label          | Starts with a letter or digit, ends in ` + "`" + `:` + "`" + `. |
| ` + "`" + `- [ ] task` + "`" + `                 | task           | Belongs to the innermost enclosing section.|
| anything else                | text           | Body of the enclosing section.             |

Lines inside fenced code blocks (` + "```" + ` or ` + "`~~~`" + `) are always text.

## Nesting

A section ends where the next section of the same or a higher rank
begins. Ranks from highest to lowest: article, heading (by level),
bold_heading, label. A ` + "`" + `## Sub` + "`" + ` under ` + "`" + `# Top` + "`" + ` is a child; a following ` + "`" + `# Next` + "`" + `
closes both.

Section ids are slash-joined slugs of the path from the top, e.g.
` + "`" + `launch/budget/costs` + "`" + `. Line-based lookups return the deepest section
containing the line.

## Tasks

` + "```" + `
- [ ] open        status todo
- [x] done        completed, status done
- [~] started     status in_progress
- [-] dropped     status cancelled
` + "```" + `

## Attributes

Inline ` + "`" + `@key(value)` + "`" + ` markers are stripped from task text and parsed:

- ` + "`" + `@p1` + "`" + `..` + "`" + `@p3` + "`" + ` or ` + "`" + `@p(2)` + "`" + `: priority 1-3
- ` + "`" + `@due(2026-03-01)` + "`" + `, ` + "`" + `@start(...)` + "`" + `, ` + "`" + `@done(...)` + "`" + `: dates
- ` + "`" + `@at(9:30)` + "`" + `: time of day
- ` + "`" + `@dur(2h)` + "`" + `, ` + "`" + `@est(30m)` + "`" + `: durations
- ` + "`" + `@repeat(weekly)` + "`" + `: daily, weekly, monthly or yearly
- ` + "`" + `@progress(3/4)` + "`" + `: ratio between 0 and 1
- ` + "`" + `@status(in_progress)` + "`" + `: overrides the checkbox mark
- ` + "`" + `@id(name)` + "`" + `: stable task id
- ` + "`" + `@flag` + "`" + `: any unknown bare marker becomes a boolean

Values that fail to parse are kept as raw strings and listed under
` + "`" + `_invalid` + "`" + `.

## Example

` + "```" + `
@@Projects
@work
# Launch
- [ ] announce @p1 @due(2026-03-01)
- [x] book room
## Budget
Costs:
- [ ] ask finance @est(30m)
` + "```" + `
`
