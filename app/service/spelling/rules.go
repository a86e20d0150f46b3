package spelling

var typos = map[string]string{
	"teh":        "the",
	"abd":        "and",
	"recieve":    "receive",
	"recieved":   "received",
	"occured":    "occurred",
	"definately": "definitely",
	"seperate":   "separate",
	"hwat":       "what",
	"whcih":      "which",
	"wich":       "which",
	"taht":       "that",
	"doesnt":     "doesn't",
	"dont":       "don't",
	"cant":       "can't",
	"wont":       "won't",
	"isnt":       "isn't",
	"thier":      "their",
	"becuase":    "because",
	"wiht":       "with",
}

// domainTerms look like typos to a generic dictionary but must never be rewritten.
var domainTerms = map[string]struct{}{
	"llm": {}, "llms": {}, "fastapi": {}, "ollama": {}, "gemini": {}, "redis": {}, "langchain": {},
	"vectordb": {}, "embeddings": {}, "tokenizer": {}, "encoder": {}, "llama": {}, "qwen": {},
	"mistral": {}, "neural": {}, "lstm": {}, "transformer": {}, "huggingface": {}, "pytorch": {},
	"tensorflow": {}, "sklearn": {}, "scikit": {}, "keras": {}, "jax": {}, "numpy": {}, "pandas": {},
	"streamlit": {}, "gradio": {}, "uvicorn": {}, "gunicorn": {}, "postgresql": {}, "mongodb": {},
	"elasticsearch": {}, "pinecone": {}, "weaviate": {}, "milvus": {}, "faiss": {},
}
