package main

import "shuoba/store"

// demoSentences seed an empty database so a fresh install can be
// tried immediately. Real content comes in through -import.
var demoSentences = []store.Sentence{
	{ID: "daily-001", Topic: "daily", Script: "你好，很高兴认识你。", Phonetic: "nǐ hǎo, hěn gāo xìng rèn shi nǐ", Translation: "Hello, nice to meet you.", Level: 1},
	{ID: "daily-002", Topic: "daily", Script: "今天天气真不错。", Phonetic: "jīn tiān tiān qì zhēn bú cuò", Translation: "The weather is really nice today.", Level: 1},
	{ID: "daily-003", Topic: "daily", Script: "请问洗手间在哪里？", Phonetic: "qǐng wèn xǐ shǒu jiān zài nǎ lǐ", Translation: "Excuse me, where is the restroom?", Level: 1},
	{ID: "daily-004", Topic: "daily", Script: "我想买一杯咖啡。", Phonetic: "wǒ xiǎng mǎi yì bēi kā fēi", Translation: "I would like to buy a cup of coffee.", Level: 1},
	{ID: "daily-005", Topic: "daily", Script: "这个多少钱？", Phonetic: "zhè ge duō shao qián", Translation: "How much is this?", Level: 1},
	{ID: "daily-006", Topic: "daily", Script: "我不太明白你的意思。", Phonetic: "wǒ bú tài míng bai nǐ de yì si", Translation: "I don't quite understand what you mean.", Level: 2},
	{ID: "daily-007", Topic: "daily", Script: "请再说一遍，慢一点。", Phonetic: "qǐng zài shuō yí biàn, màn yì diǎn", Translation: "Please say it again, a bit slower.", Level: 2},
	{ID: "daily-008", Topic: "daily", Script: "明天我们几点见面？", Phonetic: "míng tiān wǒ men jǐ diǎn jiàn miàn", Translation: "What time shall we meet tomorrow?", Level: 2},
	{ID: "daily-009", Topic: "daily", Script: "我在学习中文，已经半年了。", Phonetic: "wǒ zài xué xí zhōng wén, yǐ jīng bàn nián le", Translation: "I have been studying Chinese for half a year.", Level: 2},
	{ID: "daily-010", Topic: "daily", Script: "周末你有什么打算？", Phonetic: "zhōu mò nǐ yǒu shén me dǎ suàn", Translation: "What are your plans for the weekend?", Level: 2},
	{ID: "daily-011", Topic: "daily", Script: "如果明天下雨，我们就改天再去。", Phonetic: "rú guǒ míng tiān xià yǔ, wǒ men jiù gǎi tiān zài qù", Translation: "If it rains tomorrow, we'll go another day.", Level: 3},
	{ID: "daily-012", Topic: "daily", Script: "虽然有点难，但是我会坚持练习。", Phonetic: "suī rán yǒu diǎn nán, dàn shì wǒ huì jiān chí liàn xí", Translation: "Although it's a bit hard, I will keep practicing.", Level: 3},
}
