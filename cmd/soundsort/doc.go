/*
soundsort 把 fbank 特征文件（.safetensors）发送给 soundsortd 分类。

	soundsort label <path> [--addr host:port] [--api-key key] [-v]
	soundsort label copy <path> [--speech-dir d] [--music-dir d] [--noise-dir d]
	soundsort label move <path> [--speech-dir d] [--music-dir d] [--noise-dir d]

path 为文件时只分类该文件；为目录时递归遍历所有 .safetensors 文件，
最多 128 个文件同时在途。每个结果输出为 "path: Label"。
copy/move 把文件放进其标签对应的目录，未配置目录的标签保持原位。
*/
package main
