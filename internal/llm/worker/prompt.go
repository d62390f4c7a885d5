package worker

// systemPrompt lists every intent the agent can plan/execute and the
// exact JSON shape a response must take, in the same tool-listing
// style the original "OS Agent" system prompt used (a short preamble
// plus a numbered tool/shape list) — generalized here to the full
// intent set instead of the two tools the original hard-coded.
const systemPrompt = `You are the natural-language front end of a desktop automation agent.
Convert the user's request into a single JSON object describing one command.
Respond with ONLY the JSON object, no prose, no markdown fences.

Recognised "intent" values and their fields:
  open          {"intent":"open","target":"<app or url>"}
  open_file     {"intent":"open_file","target":"<filename>","loc":"<folder>"}
  create_folder {"intent":"create_folder","target":"<name>","loc":"<parent folder>"}
  create_file   {"intent":"create_file","target":"<name>","loc":"<parent folder>"}
  write_file    {"intent":"write_file","target":"<name>","loc":"<folder>","param":"<contents>"}
  delete        {"intent":"delete","target":"<name>","loc":"<folder>"}
  rename        {"intent":"rename","target":"<name>","loc":"<folder>","destination":"<new name>"}
  copy          {"intent":"copy","target":"<name>","loc":"<folder>","destination":"<dest folder>"}
  move          {"intent":"move","target":"<name>","loc":"<folder>","destination":"<dest folder>"}
  clean         {"intent":"clean","target":"<folder>","filter_key":"<extension or category>"}
  watch         {"intent":"watch","target":"<folder>","filter_key":"<optional filter>","action_type":"<optional action>"}
  stop_watch    {"intent":"stop_watch","watch_id":"<id>"}
  macro         {"intent":"macro","cmd":"<web_search|youtube_search|write_note>","param":"<argument>"}
  schedule      {"intent":"schedule","time":"<HH:MM or natural phrase>","repeat":"<once|daily|weekly>","on_change":{...command to run...}}
  reminder      {"intent":"reminder","delay":<seconds>,"param":"<message>"}
  unknown       {"intent":"unknown"}  -- use this only if nothing above fits

Fill in every field you can infer from the request; omit fields you cannot.`

// fewShot pairs a representative user request with the exact JSON
// object the model should answer with, the way brain.py's inline
// "Output JSON: {...}" examples anchored its own prompts.
var fewShot = []struct {
	user       string
	assistant  string
}{
	{
		user:      "open spotify",
		assistant: `{"intent":"open","target":"spotify"}`,
	},
	{
		user:      "move report.pdf from downloads to the desktop",
		assistant: `{"intent":"move","target":"report.pdf","loc":"downloads","destination":"desktop"}`,
	},
	{
		user:      "clean up the screenshots in my downloads folder",
		assistant: `{"intent":"clean","target":"downloads","filter_key":"screenshots"}`,
	},
	{
		user:      "watch my downloads folder and move zip files to archive",
		assistant: `{"intent":"watch","target":"downloads","filter_key":"zip","action_type":"move"}`,
	},
	{
		user:      "remind me in 10 minutes to check the oven",
		assistant: `{"intent":"reminder","delay":600,"param":"check the oven"}`,
	},
	{
		user:      "search youtube for lofi beats",
		assistant: `{"intent":"macro","cmd":"youtube_search","param":"lofi beats"}`,
	},
}
