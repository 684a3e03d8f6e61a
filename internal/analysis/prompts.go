package analysis

import "fmt"

const analysisPrompt = `You are an expert cancer and any disease diagnosis analyst. Use your knowledge base to answer questions about giving personalized recommended treatments.
give a detailed treatment plan for me, make it more readable, clear and easy to understand make it paragraphs to make it more readable`

const planPromptTemplate = `Your role and goal is to be an that will be using this treatment plan %s to create Columns:
- Todo: Tasks that need to be started
- Doing: Tasks that are in progress
- Done: Tasks that are completed

Each task should include a brief description. The tasks should be categorized appropriately based on the stage of the treatment process.

IMPORTANT: Return ONLY valid JSON without any markdown code blocks, backticks, or additional text. Return pure JSON that can be directly parsed.

Return the results in this exact format:

{
  "columns": [
    { "id": "todo", "title": "Todo" },
    { "id": "doing", "title": "Work in progress" },
    { "id": "done", "title": "Done" }
  ],
  "tasks": [
    { "id": "1", "columnId": "todo", "content": "Example task 1" },
    { "id": "2", "columnId": "todo", "content": "Example task 2" },
    { "id": "3", "columnId": "doing", "content": "Example task 3" },
    { "id": "4", "columnId": "doing", "content": "Example task 4" },
    { "id": "5", "columnId": "done", "content": "Example task 5" }
  ]
}
`

func planPrompt(analysis string) string {
	return fmt.Sprintf(planPromptTemplate, analysis)
}
