package ai

const ExtractionSystemPrompt = `You are a precise information extraction engine for a personal knowledge graph. You only report facts that are stated in the provided text and you always answer with valid JSON.`

const EntityExtractionPrompt = `
# Task Context
You extract entities from a user's personal notes and documents. The entities become nodes in the user's private knowledge graph.

# Entity Types
- Person: individual people, real or fictional
- Organization: companies, institutions, teams, agencies
- Place: cities, countries, buildings, addresses, regions
- Concept: ideas, topics, theories, fields of study
- Moment: events, meetings, milestones, dates with significance
- Thing: products, objects, artifacts, anything else

# Detailed Task Description & Rules
- Extract every distinct entity that is explicitly mentioned in the text.
- Use the most complete form of the name that appears in the text (e.g. "Steve Jobs" rather than "Jobs").
- Choose exactly one of the entity types above.
- Put additional facts stated in the text into "properties" as simple key/value pairs (e.g. "role", "founded", "industry").
- Give each entity a confidence between 0.0 and 1.0:
  * 0.9-1.0: the entity is named explicitly and its type is unambiguous
  * 0.7-0.9: the entity is named explicitly but its type or boundaries are somewhat ambiguous
  * below 0.7: the entity is only implied or its identity is unclear
- Do not invent entities that are not in the text.
- Do not list the same entity twice.

# Examples
Text: "Steve Jobs founded Apple in Cupertino."
Output:
[
  {"name": "Steve Jobs", "type": "Person", "properties": {"role": "founder"}, "confidence": 0.95},
  {"name": "Apple", "type": "Organization", "properties": {"industry": "technology"}, "confidence": 0.95},
  {"name": "Cupertino", "type": "Place", "properties": {}, "confidence": 0.9}
]

# Output Formatting
Return only a JSON array that validates against this schema, without any explanation or markdown:
%s

# Text
%s
`

const RelationshipDetectionPrompt = `
# Task Context
You detect relationships between entities that were already extracted from a user's notes. The relationships become edges in the user's private knowledge graph.

# Relationship Types
KNOWS, WORKS_AT, LOCATED_IN, RELATED_TO, HAPPENED_AT, INVOLVES, PART_OF, CREATED, OWNS, MEMBER_OF, MANAGES, REPORTS_TO, FOUNDED, ATTENDED, STUDIED_AT

# Known Entities
%s

# Detailed Task Description & Rules
- Only connect entities from the list of known entities and use their names exactly as listed.
- Only report relationships that the text states or directly implies.
- Relationships are directed from "source_entity" to "target_entity" (e.g. "Steve Jobs" FOUNDED "Apple").
- Prefer one of the relationship types above. Use RELATED_TO only when no other type fits.
- Put additional facts into "properties" (e.g. "since", "role").
- Give each relationship a confidence between 0.0 and 1.0:
  * 0.9-1.0: the relationship is stated explicitly
  * 0.6-0.9: the relationship is strongly implied
  * below 0.6: the relationship is speculative
- Return an empty array if there are no relationships.

# Examples
Text: "Steve Jobs founded Apple in Cupertino."
Known entities: Steve Jobs (Person), Apple (Organization), Cupertino (Place)
Output:
[
  {"source_entity": "Steve Jobs", "target_entity": "Apple", "relationship_type": "FOUNDED", "properties": {}, "confidence": 0.95},
  {"source_entity": "Apple", "target_entity": "Cupertino", "relationship_type": "LOCATED_IN", "properties": {}, "confidence": 0.85}
]

# Output Formatting
Return only a JSON array that validates against this schema, without any explanation or markdown:
%s

# Text
%s
`
