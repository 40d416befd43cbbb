package prompt

// Template names, one per phase.
const (
	RedTemplate      = "red.md"
	GreenTemplate    = "green.md"
	RefactorTemplate = "refactor.md"
)

// builtinTemplates maps template filename to content.
var builtinTemplates = map[string]string{
	RedTemplate:      redTemplate,
	GreenTemplate:    greenTemplate,
	RefactorTemplate: refactorTemplate,
}

const redTemplate = `# RED phase: write one failing test

You are in the RED phase of test-driven development. Your only job is to write a failing test.

## Requirement
{{requirement}}

## Files currently in the project
` + "```" + `
{{listing}}
` + "```" + `
{{#if test_command}}

The suite is run with ` + "`{{test_command}}`" + `.
{{/if}}

## Rules
- Write exactly ONE test that captures the requirement.
- The test MUST fail, because the feature does not exist yet.
- Follow the test conventions already used in the project.
- Do not write any implementation code.

## Response format
Reply with a single JSON object and nothing else:

{"test_code": "<full contents of the test file>", "test_filepath": "<path relative to the project root, e.g. src/math.test.js>"}
`

const greenTemplate = `# GREEN phase: make the test pass

You are in the GREEN phase of test-driven development. Your only job is to make the failing test pass.

## Failing test
` + "```" + `
{{test_code}}
` + "```" + `

## Test output
` + "```" + `
{{error_context}}
` + "```" + `

## Rules
- Write the MINIMUM code that makes the test pass.
- Do NOT add extra features or handle edge cases the test does not check.
- Do NOT refactor or clean up.
- Just make it work, nothing more.
- If previous attempts are listed above, do not repeat them.

## Response format
Reply with a single JSON object and nothing else:

{"implementation_code": "<full contents of the implementation file>", "implementation_filepath": "<path relative to the project root, e.g. src/math.js>"}
`

const refactorTemplate = `# REFACTOR phase: clean up while staying green

You are in the REFACTOR phase of test-driven development. Improve the implementation without changing what it does.

## Test (behavior that must not change)
` + "```" + `
{{test_code}}
` + "```" + `

## Current implementation
` + "```" + `
{{implementation_code}}
` + "```" + `

## Rules
- Improve code quality: naming, structure, clarity.
- Do NOT change behavior.
- Do NOT add new features.
- The test must still pass after your change.
- If the code is already clean, return it unchanged and say "No changes needed".

## Response format
Reply with a single JSON object and nothing else:

{"refactored_code": "<full contents of the improved implementation>", "changes_made": "<brief description of what you improved, or No changes needed>"}
`
