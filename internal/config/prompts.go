package config

// PromptAnalysis asks the model to reason about a workflow request before any code is written.
// Data: .Prompt
const PromptAnalysis = `
I need to generate a YouTrack workflow script based on the following request:

"{{.Prompt}}"

Before I start coding, I want to think through this problem step by step to make sure I understand the requirements and identify any missing information or ambiguities.

Please help me with a chain-of-thought reasoning process by:
1. Analyzing what the user is asking for in terms of a YouTrack workflow script
2. Breaking down the problem into smaller steps
3. Identifying the key components needed (fields, conditions, actions, etc.)
4. Noting any missing information that I would need to ask the user about
5. Highlighting any ambiguities in the request
6. Determining if clarification is needed before proceeding

Format your response with these sections:
- Reasoning: Your step-by-step analysis of the request
- Steps: A numbered list of steps to implement the workflow script
- Missing Information: A list of any information that's missing from the request
- Ambiguities: A list of any ambiguous aspects of the request
- Needs Clarification: Yes/No - whether I should ask for clarification before proceeding
`

// PromptClarification turns an analysis into questions for the user.
// Data: .Reasoning, .MissingInformation, .Ambiguities
const PromptClarification = `Based on the user's request for a YouTrack workflow script, I need to ask some clarification questions.

{{if .Reasoning}}Here's my reasoning about the request:
{{.Reasoning}}

{{end}}{{if .MissingInformation}}Missing information:
{{range .MissingInformation}}- {{.}}
{{end}}
{{end}}{{if .Ambiguities}}Ambiguities:
{{range .Ambiguities}}- {{.}}
{{end}}
{{end}}
Please generate 2-5 clear, concise clarification questions that would help me understand the user's requirements better.
The questions should:
1. Address the missing information and ambiguities
2. Be specific to YouTrack workflow scripts
3. Help gather details about fields, conditions, actions, and requirements
4. Be numbered (1., 2., etc.)
`

// PromptPlan asks for an implementation plan.
// Data: .Prompt, .Reasoning, .Steps (already numbered)
const PromptPlan = `
I need to create a detailed plan for generating a YouTrack workflow script based on the following request:

"{{.Prompt}}"
{{if .Reasoning}}

Here's my reasoning about the request:
{{.Reasoning}}
{{end}}{{if .Steps}}

I've broken down the problem into these steps:
{{range .Steps}}{{.}}
{{end}}{{end}}
Now, I need a detailed plan for implementing this workflow script. Please help me create a plan that includes:
1. The overall approach to implementing the workflow script
2. The key components that need to be implemented (guard conditions, actions, etc.)
3. The specific requirements (fields, users, etc.) that need to be defined
4. Any edge cases or special considerations to handle

Format your response with these sections:
- Plan: A detailed, step-by-step plan for implementing the workflow script
- Components: A list of the key components that need to be implemented
- Requirements: A list of the specific requirements that need to be defined
`

// GenerationGuidelines closes every code generation prompt.
const GenerationGuidelines = `
Please generate a complete, working YouTrack workflow script that follows these guidelines:
1. Use the standard YouTrack workflow script format with exports.rule
2. Include appropriate guard conditions to ensure the rule only runs when needed
3. Include all necessary requirements
4. Add comments to explain complex logic
5. Handle edge cases appropriately
6. Use the YouTrack scripting API correctly (entities, workflow, etc.)
7. Return only the code without any additional explanations or markdown formatting
`

// SystemPromptToolAgent is used when the generator may call tools before answering.
const SystemPromptToolAgent = `You are an expert in YouTrack workflow scripting working with tools.

## Available Tools
- **search_scripting_api**: Search the YouTrack scripting API sources for entities, fields and helpers
- **retrieve_code_shots**: Retrieve example workflow scripts similar to the request
- **validate_script**: Check a draft script for syntax errors and missing workflow parts

## Strategy
1. Look up any API you are unsure about with search_scripting_api
2. Validate your draft with validate_script and fix every reported issue
3. When the draft validates, answer with the final script only

## Output
Return only the JavaScript code of the workflow script, optionally inside one fenced code block.`
